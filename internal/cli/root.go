// Package cli implements the barterd command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/barterlabs/goBarterd/internal/node"
)

var (
	// Global flags
	configFile string
	standalone bool
	verbose    bool
	quiet      bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "barterd",
	Short: "goBarterd - collateralized barter exchange daemon",
	Long: `goBarterd runs a collateralized barter exchange: sellers and buyers
post offers for goods priced in another asset, acceptance moves the
goods immediately and leaves a collateral-backed debt, and acceptance
fees accrue to the payment asset's dividend shareholders.`,
	Version: node.Version,
}

// Execute runs the command tree. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVar(&standalone, "standalone", false, "run with in-memory storage and static prices")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output to console after startup")
}
