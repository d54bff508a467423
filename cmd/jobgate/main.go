// Package main provides the jobgate CLI: the duplicate-detection gate
// and pipeline orchestrator over discovered job postings.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "jobgate",
	Short: "Duplicate gate and pipeline orchestrator for job postings",
	Long: "jobgate ingests job postings from configured sources, merges " +
		"duplicates through a two-tier similarity gate, and drives each " +
		"distinct posting through a checkpointed processing pipeline.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed progress")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
