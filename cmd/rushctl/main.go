package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rushroster/rushroster-cloud/cmd/rushctl/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "rushctl",
		Short:        "Administration tools for rushroster-cloud",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.StatsCmd())
	rootCmd.AddCommand(cmd.UserCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
