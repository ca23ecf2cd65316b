package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bugctl",
	Short: "Operator tooling for the bug tracker",
	Long: `bugctl talks to the configured store directly, using the same
environment variables as the API server (STORE_DRIVER, POSTGRES_DSN,
MONGO_URI, ...).`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(migrateCmd, userCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
