// Package main provides the prisma-refs CLI entry point.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "prisma-refs",
	Short: "Extract and reconcile bibliographies from a folder of PDFs",
	Long: `prisma-refs extracts the bibliography of every PDF in a folder via a
GROBID extraction service, pools the citations across the whole corpus,
deduplicates them (DOI first, normalized title as fallback), optionally
fills missing DOIs via Crossref, and writes tabular run reports for
systematic-review screening.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", true, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}
