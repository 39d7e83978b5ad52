// Advisord is the business-formation advisory service.
//
// The serve command starts the HTTP API; consult and health talk to a running
// server; parse converts a saved coordinator reply offline.
//
// Usage:
//
//	# Start the server (reads ~/.config/advisord/config.yaml if present)
//	GOOGLE_API_KEY=... advisord serve
//
//	# Ask a question
//	advisord consult "Two founders, SaaS, planning a seed round. LLC or C-Corp?"
//
//	# Parse a reply captured earlier
//	advisord parse reply.md
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	// configPath overrides the default config file location
	configPath string
	// serverURL is the base URL of a running advisord server
	serverURL string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "advisord",
		Short: "Business formation advisory service",
		Long: `advisord answers LLC vs S-Corp vs C-Corp questions by consulting a
language model acting as a coordinated team of tax, legal and strategy
advisors, and returns structured recommendations over HTTP.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/advisord/config.yaml)")
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "advisord server URL")

	root.AddCommand(newServeCmd())
	root.AddCommand(newConsultCmd())
	root.AddCommand(newHealthCmd())
	root.AddCommand(newParseCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "advisord by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
