package main

import (
	"os"

	"github.com/spf13/cobra"

	"dropcode/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dropcode",
		Short: "dropcode - pickup code retrieval service",
		Long:  `dropcode rents time-boxed cloud phone access and delivers shipping pickup codes as screenshots.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
