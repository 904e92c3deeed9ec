package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pyro",
		Short: "Discover approximate functional dependencies and keys",
		Long: `pyro profiles a CSV file and reports its minimal approximate
functional dependencies (FDs) and unique column combinations (UCCs).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDiscoverCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "pyro", version)
		},
	}
}
