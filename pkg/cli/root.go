// Package cli provides the reqtrap CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reqtrap",
	Short: "reqtrap is a programmable HTTP interception server",
	Long: `reqtrap serves mocked HTTP traffic driven by a rule set: each rule pairs
request matchers with a handler and an optional completion checker. Rules can
be loaded from a file at startup or managed live through the admin API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "reqtrap %s (commit %s, built %s)\n", Version, Commit, BuildDate)
	},
}
