package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the CLI and in telemetry.
func SetVersion(v string) {
	version = v
}

// newRootCmd builds the command tree. With no arguments it runs serve.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "drivetransfer",
		Short: "Transfer ownership of your Google Drive documents",
		Long: `drivetransfer runs a small local web application for one Google account.
It signs in with OAuth2, lists your most recently modified Google Docs, Sheets,
Slides, Forms and Drawings, and starts ownership transfers to another account.
The receiver accepts the transfer in their own Google Drive.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "drivetransfer version %s\n" .Version}}`)

	serve := newServeCmd()
	root.AddCommand(serve, newVersionCmd())

	// Bare invocation behaves like serve, flags included.
	root.Flags().AddFlagSet(serve.Flags())
	root.RunE = serve.RunE

	return root
}

// Execute is the main entry point for the CLI application
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
