package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bourgema/prisma-refs/internal/admission"
	"github.com/bourgema/prisma-refs/internal/config"
	"github.com/bourgema/prisma-refs/internal/crossref"
	"github.com/bourgema/prisma-refs/internal/grobid"
	"github.com/bourgema/prisma-refs/internal/pipeline"
	"github.com/bourgema/prisma-refs/internal/runstore"
)

// runCacheFile is the SQLite resume cache within the output directory.
const runCacheFile = "run_cache.db"

var runFlags struct {
	configPath     string
	inputDir       string
	outputDir      string
	port           int
	image          string
	startContainer bool
	enrich         bool
	minBytes       int64
	deepVerify     bool
	noResume       bool
	workbook       bool
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.configPath, "config", "", "YAML configuration file")
	runCmd.Flags().StringVarP(&runFlags.inputDir, "input", "i", "", "Folder of candidate PDFs")
	runCmd.Flags().StringVarP(&runFlags.outputDir, "output", "o", "", "Artifact folder (default <input>/output)")
	runCmd.Flags().IntVar(&runFlags.port, "port", grobid.DefaultPort, "GROBID service port")
	runCmd.Flags().StringVar(&runFlags.image, "image", grobid.DefaultImage, "GROBID container image")
	runCmd.Flags().BoolVar(&runFlags.startContainer, "start-container", true, "Provision GROBID via Docker if the port is silent")
	runCmd.Flags().BoolVar(&runFlags.enrich, "enrich", true, "Fill missing DOIs via Crossref")
	runCmd.Flags().Int64Var(&runFlags.minBytes, "min-bytes", admission.DefaultMinBytes, "Minimum admissible PDF size in bytes")
	runCmd.Flags().BoolVar(&runFlags.deepVerify, "deep-verify", false, "Require each PDF to actually parse before admission")
	runCmd.Flags().BoolVar(&runFlags.noResume, "no-resume", false, "Ignore the run cache and re-extract everything")
	runCmd.Flags().BoolVar(&runFlags.workbook, "xlsx", false, "Also write a combined XLSX workbook")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract, deduplicate, and export references from a PDF folder",
	Long: `Run the full pipeline: purge shadow files, admit genuine PDFs, ensure a
GROBID instance is reachable (starting a container if allowed), submit
each document, pool and deduplicate the parsed references, optionally
enrich missing DOIs via Crossref, and write the run reports.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runFlags.configPath)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	applyRunFlags(cmd, &cfg)

	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := cmd.Context()

	purged, err := admission.PurgeShadowFiles(cfg.InputDir)
	if err != nil {
		exitWithError(ExitError, "purging shadow files: %v", err)
	}
	if humanOutput && purged > 0 {
		outputHuman("Removed %d shadow file(s)\n", purged)
	}

	admitted, err := admission.List(cfg.InputDir, admission.Options{
		MinBytes:   cfg.MinBytes,
		DeepVerify: cfg.DeepVerify,
	})
	if err != nil {
		exitWithError(ExitError, "listing input folder: %v", err)
	}
	if humanOutput {
		outputHuman("Admitted %d PDF(s) in %s\n", len(admitted), cfg.InputDir)
	}

	if len(admitted) == 0 {
		if humanOutput {
			outputHuman("No admissible PDFs; nothing to do.\n")
		} else {
			outputJSON(pipeline.Summary{NoReferences: true})
		}
		return nil
	}

	if err := grobid.EnsureService(ctx, grobid.ServiceOptions{
		Port:           cfg.GrobidPort,
		Image:          cfg.GrobidImage,
		StartContainer: cfg.StartContainer,
		Logger:         logger,
	}); err != nil {
		exitWithError(ExitServiceError, "%v", err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		exitWithError(ExitError, "creating output directory: %v", err)
	}

	p := &pipeline.Pipeline{
		Extractor: grobid.NewClient(cfg.GrobidURL()),
		OutputDir: cfg.OutputDir,
		Workbook:  cfg.WriteWorkbook,
		Logger:    logger,
	}
	if cfg.EnrichCrossref {
		p.Enricher = crossref.NewClient()
	}
	if cfg.Resume {
		store, err := runstore.Open(filepath.Join(cfg.OutputDir, runCacheFile))
		if err != nil {
			exitWithError(ExitError, "opening run cache: %v", err)
		}
		defer store.Close()
		p.Store = store
	}

	summary, err := p.Run(ctx, admitted)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	printSummary(summary, cfg.OutputDir)
	return nil
}

// applyRunFlags overlays explicitly set flags onto the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.InputDir = runFlags.inputDir
	}
	if flags.Changed("output") {
		cfg.OutputDir = runFlags.outputDir
	}
	if flags.Changed("port") {
		cfg.GrobidPort = runFlags.port
	}
	if flags.Changed("image") {
		cfg.GrobidImage = runFlags.image
	}
	if flags.Changed("start-container") {
		cfg.StartContainer = runFlags.startContainer
	}
	if flags.Changed("enrich") {
		cfg.EnrichCrossref = runFlags.enrich
	}
	if flags.Changed("min-bytes") {
		cfg.MinBytes = runFlags.minBytes
	}
	if flags.Changed("deep-verify") {
		cfg.DeepVerify = runFlags.deepVerify
	}
	if flags.Changed("no-resume") {
		cfg.Resume = !runFlags.noResume
	}
	if flags.Changed("xlsx") {
		cfg.WriteWorkbook = runFlags.workbook
	}
}

func printSummary(s *pipeline.Summary, outputDir string) {
	if !humanOutput {
		outputJSON(s)
		return
	}

	if s.NoReferences {
		if s.Failed > 0 {
			outputHuman("No references extracted; %d of %d document(s) failed.\n", s.Failed, s.Admitted)
		} else {
			outputHuman("No references extracted from %d document(s).\n", s.Admitted)
		}
	} else {
		outputHuman("Processed %d/%d document(s) (%d from cache), %d failed\n",
			s.Extracted, s.Admitted, s.Resumed, s.Failed)
		outputHuman("References: %d pooled, %d unique", s.References, s.Unique)
		if s.Enriched > 0 {
			outputHuman(", %d DOI(s) added via Crossref", s.Enriched)
		}
		outputHuman("\nOutput folder: %s\n", outputDir)
	}
	if s.LedgerPath != "" {
		outputHuman("Failure ledger: %s\n", s.LedgerPath)
	}
}
