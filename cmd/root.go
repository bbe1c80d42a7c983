package cmd

import (
	"github.com/spf13/cobra"
)

// Version is overridden by the embedded VERSION file at startup.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "curator",
	Short: "Curator media organizer",
	Long:  "Organizes media files into a deterministic layout derived from their metadata.",
}

func Execute() error {
	return rootCmd.Execute()
}

// ApplyVersion re-applies Version to the root command after embedding.
func ApplyVersion() {
	rootCmd.Version = Version
}

func init() {
	ApplyVersion()
}
