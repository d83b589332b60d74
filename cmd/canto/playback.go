package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/louisfellows/canto/internal/core"
)

func playCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "play <phrase>",
		Short: "Resolve a phrase and start playback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.Resolve(ctx, "", args[0])
			if err != nil {
				return err
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
}

func addCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <phrase>",
		Short: "Resolve a phrase and append it to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.Resolve(ctx, "", args[0])
			if err != nil {
				return err
			}
			if !result.Reply.Matched {
				return &core.CLIError{Code: core.ExitNotFound, Msg: "no match for phrase"}
			}
			added, err := app.service.Add(ctx, "", result.Reply.Data)
			if err != nil {
				return err
			}
			return app.printer.Print(added)
		},
	}
}

func pauseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pause [node]",
		Short: "Pause playback",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.PlaybackPause(ctx, selectorArg(args))
		},
	}
}

func resumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resume [node]",
		Short: "Resume playback",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.PlaybackResume(ctx, selectorArg(args))
		},
	}
}

func nextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "next [node]",
		Short: "Next track",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.PlaybackNext(ctx, selectorArg(args))
		},
	}
}

func prevCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prev [node]",
		Short: "Previous track",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.PlaybackPrev(ctx, selectorArg(args))
		},
	}
}

func selectorArg(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return ""
}
