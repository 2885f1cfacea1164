package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL  string
	outputFmt  string
	provenance string
)

var rootCmd = &cobra.Command{
	Use:   "dmphubctl",
	Short: "CLI for the dmphub registry server",
	Long: `dmphubctl manages persistent data-management-plan records on a dmphub server.

Mutating commands (create, update, tombstone) act on behalf of a registered
provenance, set with --provenance or the DMPHUB_PROVENANCE env var.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "dmphub server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVarP(&provenance, "provenance", "p", "", "Provenance key for mutating operations (default: from DMPHUB_PROVENANCE env)")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(tombstoneCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(augmentCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(healthCmd)
}

// resolvedProvenance returns the effective provenance key.
// Priority: --provenance flag > DMPHUB_PROVENANCE env var.
func resolvedProvenance() string {
	if provenance != "" {
		return provenance
	}
	return os.Getenv("DMPHUB_PROVENANCE")
}
