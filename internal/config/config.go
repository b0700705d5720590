// Package config handles run configuration: defaults, an optional YAML
// file, and environment overrides, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/bourgema/prisma-refs/internal/admission"
	"github.com/bourgema/prisma-refs/internal/grobid"
)

// Config is the run-level configuration, fixed at pipeline construction.
type Config struct {
	InputDir  string `yaml:"input_dir"`  // Folder of candidate PDFs (required)
	OutputDir string `yaml:"output_dir"` // Artifact folder; defaults to <input>/output

	GrobidPort     int    `yaml:"grobid_port"`
	GrobidImage    string `yaml:"grobid_image"`
	StartContainer bool   `yaml:"start_container"` // Provision GROBID via Docker when absent

	EnrichCrossref bool  `yaml:"enrich_crossref"` // Look up DOIs for incomplete records
	MinBytes       int64 `yaml:"min_bytes"`       // Minimum admissible PDF size
	DeepVerify     bool  `yaml:"deep_verify"`     // Require the PDF to actually parse
	Resume         bool  `yaml:"resume"`          // Reuse cached TEI for unchanged PDFs
	WriteWorkbook  bool  `yaml:"write_workbook"`  // Also write a combined XLSX workbook
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		GrobidPort:     grobid.DefaultPort,
		GrobidImage:    grobid.DefaultImage,
		StartContainer: true,
		EnrichCrossref: true,
		MinBytes:       admission.DefaultMinBytes,
		Resume:         true,
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (skipped when path is empty), and environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// Environment variable names. Values override both defaults and the file.
const (
	EnvInputDir       = "PRISMA_REFS_INPUT_DIR"
	EnvOutputDir      = "PRISMA_REFS_OUTPUT_DIR"
	EnvGrobidPort     = "PRISMA_REFS_GROBID_PORT"
	EnvGrobidImage    = "PRISMA_REFS_GROBID_IMAGE"
	EnvStartContainer = "PRISMA_REFS_START_CONTAINER"
	EnvEnrichCrossref = "PRISMA_REFS_ENRICH_CROSSREF"
)

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvInputDir); v != "" {
		cfg.InputDir = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv(EnvGrobidPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.GrobidPort = port
		}
	}
	if v := os.Getenv(EnvGrobidImage); v != "" {
		cfg.GrobidImage = v
	}
	if v := os.Getenv(EnvStartContainer); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.StartContainer = b
		}
	}
	if v := os.Getenv(EnvEnrichCrossref); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EnrichCrossref = b
		}
	}
}

// Validate checks that the configuration can drive a run and fills the
// derived output directory.
func (c *Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("input directory is required")
	}

	info, err := os.Stat(c.InputDir)
	if err != nil {
		return fmt.Errorf("input directory does not exist: %s", c.InputDir)
	}
	if !info.IsDir() {
		return fmt.Errorf("input path is not a directory: %s", c.InputDir)
	}

	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(c.InputDir, "output")
	}
	if c.MinBytes <= 0 {
		c.MinBytes = admission.DefaultMinBytes
	}
	if c.GrobidPort <= 0 || c.GrobidPort > 65535 {
		return fmt.Errorf("invalid grobid port: %d", c.GrobidPort)
	}
	return nil
}

// GrobidURL returns the base URL of the configured GROBID instance.
func (c *Config) GrobidURL() string {
	return fmt.Sprintf("http://localhost:%d", c.GrobidPort)
}
