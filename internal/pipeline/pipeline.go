// Package pipeline orchestrates one extraction run: submit each admitted
// document to the extraction service, pool the parsed references,
// deduplicate them corpus-wide, optionally enrich incomplete records,
// and write the run artifacts.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bourgema/prisma-refs/internal/admission"
	"github.com/bourgema/prisma-refs/internal/biblio"
	"github.com/bourgema/prisma-refs/internal/crossref"
	"github.com/bourgema/prisma-refs/internal/report"
	"github.com/bourgema/prisma-refs/internal/runstore"
	"github.com/bourgema/prisma-refs/internal/tei"
)

// Extractor submits one document to the extraction service and returns
// its TEI payload.
type Extractor interface {
	ProcessFulltext(ctx context.Context, pdfPath string) (string, error)
}

// Enricher finds the best identifier match for a citation title.
type Enricher interface {
	BestMatch(ctx context.Context, title string) (*crossref.Match, error)
}

// Pipeline runs the extraction-and-reconciliation flow. Documents are
// processed sequentially; a failure on one document is recorded in the
// ledger and never aborts the run.
type Pipeline struct {
	Extractor Extractor
	Enricher  Enricher        // nil disables enrichment
	Store     *runstore.Store // nil disables resume
	OutputDir string
	Workbook  bool // also write a combined XLSX workbook
	Logger    *slog.Logger
}

// Summary reports the outcome of a run.
type Summary struct {
	Admitted   int    `json:"admitted"`
	Extracted  int    `json:"extracted"` // documents processed successfully
	Resumed    int    `json:"resumed"`   // documents served from the run cache
	Failed     int    `json:"failed"`
	References int    `json:"references"` // pooled records before dedup
	Unique     int    `json:"unique"`
	Enriched   int    `json:"enriched"`
	LedgerPath string `json:"ledger_path,omitempty"` // set when failures were written

	// NoReferences distinguishes a run that extracted nothing (empty
	// admissible set or empty bibliographies) from a failed run.
	NoReferences bool `json:"no_references"`
}

// accumulator owns the per-run pooled state. It lives for exactly one
// run and is only appended to, in order, by the single control flow.
type accumulator struct {
	records  []biblio.Record
	failures []report.Failure
}

// Run processes the admitted documents and writes the run artifacts.
// It returns an error only for run-level problems (unwritable output
// directory, artifact write failures); per-document extraction failures
// land in the ledger.
func (p *Pipeline) Run(ctx context.Context, admitted []admission.Candidate) (*Summary, error) {
	logger := p.logger()

	if err := os.MkdirAll(p.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	summary := &Summary{Admitted: len(admitted)}
	acc := &accumulator{}

	for i, doc := range admitted {
		logger.Info("processing document", "n", i+1, "total", len(admitted), "name", doc.Name)

		records, resumed, err := p.processDocument(ctx, doc)
		if err != nil {
			logger.Warn("document failed", "name", doc.Name, "error", err)
			acc.failures = append(acc.failures, report.Failure{Source: doc.Name, Error: err.Error()})
			summary.Failed++
			continue
		}

		acc.records = append(acc.records, records...)
		summary.Extracted++
		if resumed {
			summary.Resumed++
		}
	}

	summary.References = len(acc.records)

	if len(acc.records) == 0 {
		summary.NoReferences = true
		if err := p.writeLedger(acc, summary); err != nil {
			return nil, err
		}
		return summary, nil
	}

	if err := report.WriteRecordsCSV(filepath.Join(p.OutputDir, report.BySourceFile), acc.records); err != nil {
		return nil, err
	}

	unique := biblio.Deduplicate(acc.records)
	if p.Enricher != nil {
		summary.Enriched = p.enrich(ctx, unique, logger)
	}
	summary.Unique = len(unique)

	if err := report.WriteRecordsCSV(filepath.Join(p.OutputDir, report.UniqueFile), unique); err != nil {
		return nil, err
	}
	if err := p.writeLedger(acc, summary); err != nil {
		return nil, err
	}

	if p.Workbook {
		wbPath := filepath.Join(p.OutputDir, report.WorkbookFile)
		if err := report.WriteWorkbook(wbPath, acc.records, unique, acc.failures); err != nil {
			return nil, err
		}
	}

	return summary, nil
}

// processDocument returns the records extracted from one document and
// whether they came from the run cache.
func (p *Pipeline) processDocument(ctx context.Context, doc admission.Candidate) ([]biblio.Record, bool, error) {
	teiPath := filepath.Join(p.OutputDir, teiFileName(doc.Name))

	var hash string
	if p.Store != nil {
		h, err := runstore.HashFile(doc.Path)
		if err == nil {
			hash = h
			if cached := p.cachedTEI(hash); cached != "" {
				records, err := tei.ParseReferences(cached, doc.Name)
				if err == nil {
					return records, true, nil
				}
				// Corrupt cache entry; fall through to re-extract.
			}
		}
	}

	// The file may have vanished between admission and submission
	// (cloud-sync folders do this).
	if _, err := os.Stat(doc.Path); err != nil {
		return nil, false, fmt.Errorf("disappeared before submission: %w", err)
	}

	teiXML, err := p.Extractor.ProcessFulltext(ctx, doc.Path)
	if err != nil {
		return nil, false, err
	}

	if err := os.WriteFile(teiPath, []byte(teiXML), 0644); err != nil {
		return nil, false, fmt.Errorf("writing TEI result: %w", err)
	}

	records, err := tei.ParseReferences(teiXML, doc.Name)
	if err != nil {
		return nil, false, err
	}

	if p.Store != nil && hash != "" {
		entry := runstore.Entry{
			Hash:     hash,
			Name:     doc.Name,
			TEIPath:  teiPath,
			RefCount: len(records),
		}
		if err := p.Store.Put(entry); err != nil {
			// Cache trouble must not fail the document.
			p.logger().Warn("run cache update failed", "name", doc.Name, "error", err)
		}
	}

	return records, false, nil
}

// cachedTEI returns the cached TEI body for a content hash, or "".
func (p *Pipeline) cachedTEI(hash string) string {
	entry, err := p.Store.Get(hash)
	if err != nil || entry == nil {
		return ""
	}
	data, err := os.ReadFile(entry.TEIPath)
	if err != nil {
		return ""
	}
	return string(data)
}

// enrich fills missing identifiers on the deduplicated records via the
// lookup service, in place. A record's existing identifier or year is
// never overwritten; lookup failures leave the record unchanged. Only
// hits that carry an identifier are adopted — a year-only match adopts
// nothing.
func (p *Pipeline) enrich(ctx context.Context, records []biblio.Record, logger *slog.Logger) int {
	enriched := 0
	for i := range records {
		if records[i].HasDOI() {
			continue
		}

		match, err := p.Enricher.BestMatch(ctx, records[i].Title)
		if err != nil || match == nil || match.DOI == "" {
			continue
		}

		records[i].DOI = match.DOI
		if records[i].Year == "" && match.Year != "" {
			records[i].Year = match.Year
		}
		enriched++
	}
	if enriched > 0 {
		logger.Info("enriched records via crossref", "count", enriched)
	}
	return enriched
}

// writeLedger writes the failure ledger if there were failures.
func (p *Pipeline) writeLedger(acc *accumulator, summary *Summary) error {
	if len(acc.failures) == 0 {
		return nil
	}
	path := filepath.Join(p.OutputDir, report.FailuresFile)
	if err := report.WriteFailuresCSV(path, acc.failures); err != nil {
		return err
	}
	summary.LedgerPath = path
	return nil
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// teiFileName maps a source PDF name to its TEI artifact name.
func teiFileName(pdfName string) string {
	stem := strings.TrimSuffix(pdfName, filepath.Ext(pdfName))
	return stem + ".tei.xml"
}
