// Package cli provides command-line interface implementation for gravedigger.
package cli

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gravedigger",
	Short: "A CLI tool for exhuming execution history from offline registry hives",
	Long: `gravedigger is a CLI tool for parsing program-execution artifacts out of
registry hive files acquired from disk, without touching a live registry.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Show help and exit 0 if no subcommand is provided
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(userAssistCmd)
}
