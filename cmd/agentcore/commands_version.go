package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agentcore version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("agentcore %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}
