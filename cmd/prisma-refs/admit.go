package main

import (
	"github.com/spf13/cobra"

	"github.com/bourgema/prisma-refs/internal/admission"
)

var admitFlags struct {
	minBytes   int64
	deepVerify bool
}

func init() {
	rootCmd.AddCommand(admitCmd)

	admitCmd.Flags().Int64Var(&admitFlags.minBytes, "min-bytes", admission.DefaultMinBytes, "Minimum admissible PDF size in bytes")
	admitCmd.Flags().BoolVar(&admitFlags.deepVerify, "deep-verify", false, "Require each PDF to actually parse")
}

var admitCmd = &cobra.Command{
	Use:   "admit <dir>",
	Short: "List the PDFs a run would admit, without touching anything",
	Long: `Dry-run the admission filter on a folder. Shadow files (._*.pdf) are
reported but not deleted; no document is submitted anywhere.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdmit,
}

// AdmitResponse is the JSON payload of the admit command.
type AdmitResponse struct {
	Admitted    []admission.Candidate `json:"admitted"`
	ShadowFiles int                   `json:"shadow_files"`
}

func runAdmit(cmd *cobra.Command, args []string) error {
	dir := args[0]

	shadows, err := admission.ShadowFiles(dir)
	if err != nil {
		exitWithError(ExitError, "scanning %s: %v", dir, err)
	}

	admitted, err := admission.List(dir, admission.Options{
		MinBytes:   admitFlags.minBytes,
		DeepVerify: admitFlags.deepVerify,
	})
	if err != nil {
		exitWithError(ExitError, "listing %s: %v", dir, err)
	}

	if !humanOutput {
		return outputJSON(AdmitResponse{Admitted: admitted, ShadowFiles: len(shadows)})
	}

	for _, c := range admitted {
		outputHuman("%s (%d bytes)\n", c.Name, c.Size)
	}
	outputHuman("%d admissible PDF(s), %d shadow file(s) would be purged\n", len(admitted), len(shadows))
	return nil
}
