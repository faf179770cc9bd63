package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vsbuildlogger/vsbuildlogger/internal/buildinfo"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Print the vsbuildlogger build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vsbuildlogger %s\n", buildinfo.String())
		},
	}
}
