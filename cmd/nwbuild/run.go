package main

import (
	"github.com/spf13/cobra"

	"github.com/conn-castle/nwbuild/internal/messages"
	"github.com/conn-castle/nwbuild/internal/options"
)

// newRunCmd launches the app. Everything after "--" goes to the runtime.
func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   messages.RunUse,
		Short: messages.RunShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			var argv []string
			if len(args) > 0 {
				argv = args
			}
			return runInvocation(cmd, flags, options.ModeRun, argv)
		},
	}
}
