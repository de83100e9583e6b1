package main

import (
	"fmt"
	"os"

	"devconsole/internal/domain"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "consolectl",
		Short:         "Command-line client for the developer console",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("url", envOr("CONSOLE_URL", "http://localhost:8080"), "Console base URL")
	rootCmd.PersistentFlags().Duration("timeout", 0, "HTTP request timeout (default 10s)")

	rootCmd.AddCommand(execCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(pendingCmd())
	rootCmd.AddCommand(statusCmd("approve", "Confirm a pending transaction request", domain.TransactionConfirmed))
	rootCmd.AddCommand(statusCmd("reject", "Reject a pending transaction request", domain.TransactionRejected))
	rootCmd.AddCommand(projectsCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(eventsCmd())
	return rootCmd
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
