// Package cmd provides the command-line interface for rowpressure.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "rowpressure",
	Short: "rowpressure estimates the DRAM refresh overhead of row-hammer " +
		"mitigation from memory traces.",
	Long: `rowpressure replays the memory-side requests of simulation ` +
		`traces through a row tracking cache and per-row counters, and ` +
		`reports the extra refresh time every refresh window would need.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
