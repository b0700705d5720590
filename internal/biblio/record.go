// Package biblio defines the core domain types for extracted bibliographic references.
package biblio

import (
	"regexp"
	"strings"
)

// Record represents one citation extracted from one source document.
// All metadata fields are optional; an empty string means the extraction
// service did not report the field. Source is always set.
type Record struct {
	Source      string `json:"source_pdf"`             // Name of the PDF the citation was extracted from
	Title       string `json:"title,omitempty"`        // Citation title as reported
	TitleNorm   string `json:"title_norm,omitempty"`   // Derived from Title; fallback deduplication key
	Year        string `json:"year,omitempty"`         // 4-digit publication year
	DOI         string `json:"doi,omitempty"`          // Digital Object Identifier (primary deduplication key)
	FirstAuthor string `json:"first_author,omitempty"` // "Forename Surname" of the first listed author
}

// NewRecord creates a Record for the given source document with the given title.
// TitleNorm is derived from the title.
func NewRecord(source, title string) Record {
	return Record{
		Source:    source,
		Title:     title,
		TitleNorm: NormalizeTitle(title),
	}
}

// SetTitle updates the title and recomputes the normalized key.
// TitleNorm must never be set independently of Title.
func (r *Record) SetTitle(title string) {
	r.Title = title
	r.TitleNorm = NormalizeTitle(title)
}

// HasDOI reports whether the record carries a non-empty identifier.
func (r *Record) HasDOI() bool {
	return strings.TrimSpace(r.DOI) != ""
}

var (
	whitespacePattern  = regexp.MustCompile(`\s+`)
	punctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)
)

// NormalizeTitle derives the deduplication key for a title: whitespace
// collapsed to single spaces, punctuation stripped, lowercased.
// An empty or whitespace-only title yields "".
func NormalizeTitle(title string) string {
	if title == "" {
		return ""
	}
	t := whitespacePattern.ReplaceAllString(strings.TrimSpace(title), " ")
	t = punctuationPattern.ReplaceAllString(t, "")
	return strings.ToLower(t)
}

// NormalizeDOI normalizes a DOI for comparison. It removes common URL
// prefixes (https://doi.org/, DOI:), trims whitespace, and lowercases.
func NormalizeDOI(doi string) string {
	doi = strings.ToLower(strings.TrimSpace(doi))
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.TrimSpace(doi)
}
