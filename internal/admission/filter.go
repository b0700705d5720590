// Package admission decides which files in a folder are genuine,
// processable PDF documents. Cloud-sync folders and archive utilities
// routinely inject shadow companions (._*.pdf) that are not real
// documents; skipping them by name alone would still admit truncated or
// mislabeled files, so size and byte signature are checked too.
package admission

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/bourgema/prisma-refs/internal/pdfscan"
)

const (
	// ShadowPrefix marks AppleDouble companion files (._doc.pdf).
	ShadowPrefix = "._"

	// DefaultMinBytes is the minimum size of a useful PDF (5 KiB).
	DefaultMinBytes = 5 * 1024
)

// Options configures the filter.
type Options struct {
	// MinBytes is the minimum admissible file size. Zero means DefaultMinBytes.
	MinBytes int64

	// DeepVerify additionally requires that the file parses as a PDF
	// with at least one page.
	DeepVerify bool
}

// Candidate is an admissible input document.
type Candidate struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ShadowFiles returns the shadow companion files (._*.pdf) in dir,
// ordered by name.
func ShadowFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, ShadowPrefix+"*.pdf"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// PurgeShadowFiles deletes all shadow companion files in dir and returns
// the number removed. Per-file removal errors are ignored.
func PurgeShadowFiles(dir string) (int, error) {
	matches, err := ShadowFiles(dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range matches {
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	return removed, nil
}

// List returns the admissible PDF documents in dir, ordered by name.
// A file is admissible when its name does not carry the shadow prefix,
// it still exists at check time, its size is at least Options.MinBytes,
// and it starts with the PDF byte signature. Any probe error excludes
// the file rather than failing the listing.
func List(dir string, opts Options) ([]Candidate, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	minBytes := opts.MinBytes
	if minBytes <= 0 {
		minBytes = DefaultMinBytes
	}

	var admitted []Candidate
	for _, path := range matches {
		size, ok := probe(path, minBytes, opts.DeepVerify)
		if !ok {
			continue
		}
		admitted = append(admitted, Candidate{
			Path: path,
			Name: filepath.Base(path),
			Size: size,
		})
	}
	return admitted, nil
}

// probe applies the per-file admission checks. It returns the file size
// and whether the file is admissible.
func probe(path string, minBytes int64, deepVerify bool) (int64, bool) {
	if strings.HasPrefix(filepath.Base(path), ShadowPrefix) {
		return 0, false
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0, false
	}
	if info.Size() < minBytes {
		return 0, false
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil || !mtype.Is("application/pdf") {
		return 0, false
	}

	if deepVerify {
		if err := pdfscan.Verify(path); err != nil {
			return 0, false
		}
	}

	return info.Size(), true
}
