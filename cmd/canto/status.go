package main

import (
	"context"

	"github.com/spf13/cobra"
)

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [node]",
		Short: "Show what is playing",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.Status(ctx, selectorArg(args))
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
}

func announceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "announce [node]",
		Short: "Duck playback and announce the current track",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.Announce(ctx, selectorArg(args))
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
}

func rebuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild [node]",
		Short: "Rebuild the media catalog",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.RebuildCatalog(ctx, selectorArg(args))
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
}
