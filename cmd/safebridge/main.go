package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/safebridge/internal/cli"
	"github.com/example/safebridge/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "safebridge",
		Short:   "SafeBridge - hospital acceptance dispatch for emergency transport",
		Version: version.String(),
		Long: `SafeBridge calls candidate emergency rooms one at a time until one accepts
the patient, then hands the case off to a communication session.`,
		SilenceUsage: true,
	}
	cli.BindGlobalFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(cli.DispatchCmd())
	rootCmd.AddCommand(cli.HandoffCmd())
	rootCmd.AddCommand(cli.ReconcileCmd())
	rootCmd.AddCommand(cli.LogCmd())
	rootCmd.AddCommand(cli.ConfigCmd())
	rootCmd.AddCommand(cli.VersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
