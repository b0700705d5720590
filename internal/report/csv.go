// Package report persists run artifacts: the per-source reference list,
// the deduplicated list, and the failure ledger.
package report

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/bourgema/prisma-refs/internal/biblio"
)

// Output file names within the run's output directory.
const (
	BySourceFile = "refs_by_source.csv"
	UniqueFile   = "refs_unique.csv"
	FailuresFile = "grobid_failures.csv"
	WorkbookFile = "refs.xlsx"
)

// RecordColumns is the fixed column order for reference exports.
var RecordColumns = []string{"source_pdf", "title", "year", "doi", "first_author", "title_norm"}

// FailureColumns is the fixed column order for the failure ledger.
var FailureColumns = []string{"source_pdf", "error"}

// Failure is one entry of the run's failure ledger.
type Failure struct {
	Source string `json:"source_pdf"`
	Error  string `json:"error"`
}

// recordRow flattens a Record into the fixed column order.
func recordRow(r biblio.Record) []string {
	return []string{r.Source, r.Title, r.Year, r.DOI, r.FirstAuthor, r.TitleNorm}
}

// WriteRecordsCSV writes records to path with a header row.
func WriteRecordsCSV(path string, records []biblio.Record) error {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, RecordColumns)
	for _, r := range records {
		rows = append(rows, recordRow(r))
	}
	return writeCSV(path, rows)
}

// WriteFailuresCSV writes the failure ledger to path with a header row.
func WriteFailuresCSV(path string, failures []Failure) error {
	rows := make([][]string, 0, len(failures)+1)
	rows = append(rows, FailureColumns)
	for _, f := range failures {
		rows = append(rows, []string{f.Source, f.Error})
	}
	return writeCSV(path, rows)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
