package main

import (
	"github.com/spf13/cobra"

	"github.com/conn-castle/nwbuild/internal/messages"
	"github.com/conn-castle/nwbuild/internal/options"
)

func newBuildCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   messages.BuildUse,
		Short: messages.BuildShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvocation(cmd, flags, options.ModeBuild, nil)
		},
	}
}
