package main

import (
	"github.com/spf13/cobra"

	"github.com/bourgema/prisma-refs/internal/pdfscan"
)

func init() {
	rootCmd.AddCommand(doiCmd)
}

var doiCmd = &cobra.Command{
	Use:   "doi <file.pdf>",
	Short: "Scan a local PDF for its own DOI",
	Long: `Scan the first pages of a PDF for a DOI pattern, without calling any
external service. Useful for spot-checking what a source document is.`,
	Args: cobra.ExactArgs(1),
	RunE: runDOI,
}

// DOIResponse is the JSON payload of the doi command.
type DOIResponse struct {
	Path string `json:"path"`
	DOI  string `json:"doi,omitempty"`
}

func runDOI(cmd *cobra.Command, args []string) error {
	path := args[0]

	doi, err := pdfscan.ExtractDOI(path)
	if err != nil {
		exitWithError(ExitError, "reading %s: %v", path, err)
	}

	if !humanOutput {
		return outputJSON(DOIResponse{Path: path, DOI: doi})
	}

	if doi == "" {
		outputHuman("no DOI found in %s\n", path)
	} else {
		outputHuman("%s\n", doi)
	}
	return nil
}
