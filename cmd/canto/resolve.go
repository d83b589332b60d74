package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/louisfellows/canto/internal/core"
)

func resolveCommand() *cobra.Command {
	var start bool

	cmd := &cobra.Command{
		Use:   "resolve <phrase>",
		Short: "Resolve a spoken phrase to media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.Resolve(ctx, "", args[0])
			if err != nil {
				return err
			}
			if !start {
				return app.printer.Print(result)
			}
			if !result.Reply.Matched {
				return &core.CLIError{Code: core.ExitNotFound, Msg: "no match for phrase"}
			}
			started, err := app.service.Start(ctx, "", result.Reply.Data)
			if err != nil {
				return err
			}
			return app.printer.Print(started)
		},
	}

	cmd.Flags().BoolVar(&start, "start", false, "start playback on a match")

	return cmd
}
