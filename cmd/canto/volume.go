package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/louisfellows/canto/internal/core"
)

func volumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vol [node] <0..100>",
		Short: "Set volume",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector := ""
			val := args[0]
			if len(args) == 2 {
				selector = args[0]
				val = args[1]
			}
			percent, err := strconv.Atoi(val)
			if err != nil {
				return &core.CLIError{Code: core.ExitUsage, Msg: "volume must be a number 0-100"}
			}
			return app.service.SetVolume(ctx, selector, percent)
		},
	}
}

func duckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "duck [node]",
		Short: "Lower volume for a voice interaction",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.Duck(ctx, selectorArg(args))
		},
	}
}

func restoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore [node]",
		Short: "Restore ducked volume",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.RestoreVolume(ctx, selectorArg(args))
		},
	}
}
