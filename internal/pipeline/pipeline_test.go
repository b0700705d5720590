package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/bourgema/prisma-refs/internal/admission"
	"github.com/bourgema/prisma-refs/internal/biblio"
	"github.com/bourgema/prisma-refs/internal/crossref"
	"github.com/bourgema/prisma-refs/internal/report"
	"github.com/bourgema/prisma-refs/internal/runstore"
)

// teiWithRefs builds a minimal TEI body citing the given titles.
func teiWithRefs(titles ...string) string {
	body := `<TEI xmlns="http://www.tei-c.org/ns/1.0"><text><back><div><listBibl>`
	for _, title := range titles {
		body += fmt.Sprintf(`<biblStruct><analytic><title level="a">%s</title></analytic></biblStruct>`, title)
	}
	return body + `</listBibl></div></back></text></TEI>`
}

// fakeExtractor returns canned TEI per document name.
type fakeExtractor struct {
	tei   map[string]string // name -> TEI body
	fail  map[string]error  // name -> extraction error
	calls []string
}

func (f *fakeExtractor) ProcessFulltext(_ context.Context, pdfPath string) (string, error) {
	name := filepath.Base(pdfPath)
	f.calls = append(f.calls, name)
	if err, ok := f.fail[name]; ok {
		return "", err
	}
	return f.tei[name], nil
}

// fakeEnricher returns canned matches per title.
type fakeEnricher struct {
	matches map[string]*crossref.Match
	queried []string
}

func (f *fakeEnricher) BestMatch(_ context.Context, title string) (*crossref.Match, error) {
	f.queried = append(f.queried, title)
	if m, ok := f.matches[title]; ok {
		return m, nil
	}
	return nil, crossref.ErrNoMatch
}

// newCandidates writes placeholder PDFs and returns their candidates.
func newCandidates(t *testing.T, dir string, names ...string) []admission.Candidate {
	t.Helper()
	var out []admission.Candidate
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("%PDF-1.4 "+name), 0644); err != nil {
			t.Fatal(err)
		}
		out = append(out, admission.Candidate{Path: path, Name: name, Size: int64(len(name)) + 9})
	}
	return out
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestRunDeduplicatesAcrossDocuments(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	docs := newCandidates(t, inDir, "a.pdf", "b.pdf")

	ext := &fakeExtractor{tei: map[string]string{
		"a.pdf": teiWithRefs("Effects of Gait Training"),
		"b.pdf": teiWithRefs("Effects of Gait Training"),
	}}
	p := &Pipeline{Extractor: ext, OutputDir: outDir}

	summary, err := p.Run(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Extracted != 2 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want 2 extracted, 0 failed", summary)
	}
	if summary.References != 2 {
		t.Errorf("References = %d, want 2", summary.References)
	}
	if summary.Unique != 1 {
		t.Errorf("Unique = %d, want 1 after title dedup", summary.Unique)
	}

	rows := readCSV(t, filepath.Join(outDir, report.UniqueFile))
	if len(rows) != 2 { // header + 1 record
		t.Errorf("unique csv has %d rows, want 2", len(rows))
	}

	// The per-source export keeps both.
	rows = readCSV(t, filepath.Join(outDir, report.BySourceFile))
	if len(rows) != 3 {
		t.Errorf("by-source csv has %d rows, want 3", len(rows))
	}

	// TEI artifacts written per document.
	for _, name := range []string{"a.tei.xml", "b.tei.xml"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("missing TEI artifact %s: %v", name, err)
		}
	}
}

func TestRunIsolatesDocumentFailure(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	docs := newCandidates(t, inDir, "good.pdf", "bad.pdf")

	ext := &fakeExtractor{
		tei:  map[string]string{"good.pdf": teiWithRefs("Some Study")},
		fail: map[string]error{"bad.pdf": errors.New("grobid returned status 500")},
	}
	p := &Pipeline{Extractor: ext, OutputDir: outDir}

	summary, err := p.Run(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Extracted != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 extracted, 1 failed", summary)
	}
	if summary.LedgerPath == "" {
		t.Fatal("ledger path not set")
	}

	rows := readCSV(t, summary.LedgerPath)
	if len(rows) != 2 {
		t.Fatalf("ledger has %d rows, want 2", len(rows))
	}
	if rows[1][0] != "bad.pdf" {
		t.Errorf("ledger source = %q, want bad.pdf", rows[1][0])
	}
}

func TestRunMalformedTEIIsPerDocumentFailure(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	docs := newCandidates(t, inDir, "broken.pdf")

	ext := &fakeExtractor{tei: map[string]string{
		"broken.pdf": "<TEI><listBibl><biblStruct>",
	}}
	p := &Pipeline{Extractor: ext, OutputDir: outDir}

	summary, err := p.Run(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}
	if !summary.NoReferences {
		t.Error("NoReferences should be true")
	}
}

func TestRunEmptyAdmissibleSet(t *testing.T) {
	outDir := t.TempDir()
	p := &Pipeline{Extractor: &fakeExtractor{}, OutputDir: outDir}

	summary, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !summary.NoReferences {
		t.Error("NoReferences should be true")
	}
	if summary.Failed != 0 || summary.References != 0 {
		t.Errorf("summary = %+v, want zero failures and references", summary)
	}
	if summary.LedgerPath != "" {
		t.Errorf("no ledger should be written, got %q", summary.LedgerPath)
	}
	if _, err := os.Stat(filepath.Join(outDir, report.BySourceFile)); !os.IsNotExist(err) {
		t.Error("by-source csv should not be written for an empty run")
	}
}

func TestRunEnrichment(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	docs := newCandidates(t, inDir, "a.pdf")

	ext := &fakeExtractor{tei: map[string]string{
		"a.pdf": teiWithRefs("Known Work", "Unknown Work"),
	}}
	enr := &fakeEnricher{matches: map[string]*crossref.Match{
		"Known Work": {DOI: "10.1000/known", Year: "2018"},
	}}
	p := &Pipeline{Extractor: ext, Enricher: enr, OutputDir: outDir}

	summary, err := p.Run(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Enriched != 1 {
		t.Errorf("Enriched = %d, want 1", summary.Enriched)
	}

	rows := readCSV(t, filepath.Join(outDir, report.UniqueFile))
	var known []string
	for _, row := range rows[1:] {
		if row[1] == "Known Work" {
			known = row
		}
	}
	if known == nil {
		t.Fatal("Known Work not in unique export")
	}
	if known[3] != "10.1000/known" {
		t.Errorf("doi = %q, want adopted identifier", known[3])
	}
	if known[2] != "2018" {
		t.Errorf("year = %q, want adopted 2018", known[2])
	}
}

func TestEnrichNeverOverwrites(t *testing.T) {
	records := []biblio.Record{
		{Source: "a.pdf", Title: "Has DOI", TitleNorm: "has doi", DOI: "10.1/existing", Year: "1999"},
		{Source: "a.pdf", Title: "Has Year", TitleNorm: "has year", Year: "2001"},
	}
	enr := &fakeEnricher{matches: map[string]*crossref.Match{
		"Has DOI":  {DOI: "10.1/other", Year: "2020"},
		"Has Year": {DOI: "10.1/found", Year: "2020"},
	}}
	p := &Pipeline{Enricher: enr}

	enriched := p.enrich(context.Background(), records, p.logger())
	if enriched != 1 {
		t.Errorf("enriched = %d, want 1", enriched)
	}

	if records[0].DOI != "10.1/existing" || records[0].Year != "1999" {
		t.Errorf("record with DOI was modified: %+v", records[0])
	}
	if len(enr.queried) != 1 || enr.queried[0] != "Has Year" {
		t.Errorf("queried = %v, records with identifiers must not be looked up", enr.queried)
	}
	if records[1].DOI != "10.1/found" {
		t.Errorf("DOI = %q, want adopted", records[1].DOI)
	}
	if records[1].Year != "2001" {
		t.Errorf("Year = %q, existing year must be kept", records[1].Year)
	}
}

func TestEnrichIgnoresYearOnlyMatch(t *testing.T) {
	records := []biblio.Record{
		{Source: "a.pdf", Title: "Year Only", TitleNorm: "year only"},
	}
	enr := &fakeEnricher{matches: map[string]*crossref.Match{
		"Year Only": {Year: "2015"},
	}}
	p := &Pipeline{Enricher: enr}

	if enriched := p.enrich(context.Background(), records, p.logger()); enriched != 0 {
		t.Errorf("enriched = %d, want 0 for a hit without identifier", enriched)
	}
	if records[0].Year != "" {
		t.Errorf("Year = %q, year-only match must adopt nothing", records[0].Year)
	}
}

func TestRunResumesFromCache(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	docs := newCandidates(t, inDir, "a.pdf")

	store, err := runstore.Open(filepath.Join(t.TempDir(), "run.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ext := &fakeExtractor{tei: map[string]string{
		"a.pdf": teiWithRefs("Cached Study"),
	}}
	p := &Pipeline{Extractor: ext, Store: store, OutputDir: outDir}

	if _, err := p.Run(context.Background(), docs); err != nil {
		t.Fatal(err)
	}
	if len(ext.calls) != 1 {
		t.Fatalf("first run made %d service calls, want 1", len(ext.calls))
	}

	summary, err := p.Run(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	if len(ext.calls) != 1 {
		t.Errorf("second run made %d total service calls, want still 1", len(ext.calls))
	}
	if summary.Resumed != 1 {
		t.Errorf("Resumed = %d, want 1", summary.Resumed)
	}
	if summary.References != 1 {
		t.Errorf("References = %d, want 1 from cached TEI", summary.References)
	}
}

func TestRunReextractsChangedFile(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	docs := newCandidates(t, inDir, "a.pdf")

	store, err := runstore.Open(filepath.Join(t.TempDir(), "run.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ext := &fakeExtractor{tei: map[string]string{
		"a.pdf": teiWithRefs("Original"),
	}}
	p := &Pipeline{Extractor: ext, Store: store, OutputDir: outDir}

	if _, err := p.Run(context.Background(), docs); err != nil {
		t.Fatal(err)
	}

	// Same name, different content: the cache must not serve it.
	if err := os.WriteFile(docs[0].Path, []byte("%PDF-1.4 replaced"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background(), docs); err != nil {
		t.Fatal(err)
	}
	if len(ext.calls) != 2 {
		t.Errorf("service calls = %d, want 2 (changed file re-extracted)", len(ext.calls))
	}
}
