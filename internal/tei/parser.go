// Package tei parses GROBID TEI XML into bibliographic records.
package tei

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/bourgema/prisma-refs/internal/biblio"
)

var yearPattern = regexp.MustCompile(`\d{4}`)

// biblStruct mirrors the parts of a TEI <biblStruct> entry we consume.
// GROBID nests citation metadata under <analytic> (the article) and
// <monogr> (the containing journal or book).
type biblStruct struct {
	Analytic *biblLevel `xml:"analytic"`
	Monogr   *monogr    `xml:"monogr"`
	IDNos    []idno     `xml:"idno"`
}

type biblLevel struct {
	Titles  []title  `xml:"title"`
	Authors []author `xml:"author"`
	IDNos   []idno   `xml:"idno"`
}

type monogr struct {
	Titles  []title  `xml:"title"`
	Authors []author `xml:"author"`
	IDNos   []idno   `xml:"idno"`
	Imprint struct {
		Dates []date `xml:"date"`
	} `xml:"imprint"`
}

type title struct {
	Level string `xml:"level,attr"`
	Text  string `xml:",chardata"`
}

type author struct {
	PersName *persName `xml:"persName"`
}

type persName struct {
	Forenames []nameComponent `xml:"forename"`
	Surname   string          `xml:"surname"`
}

type nameComponent struct {
	Text string `xml:",chardata"`
}

type date struct {
	When string `xml:"when,attr"`
	Text string `xml:",chardata"`
}

type idno struct {
	Type string `xml:"type,attr"`
	Text string `xml:",chardata"`
}

// ParseReferences extracts one Record per <biblStruct> in the document's
// reference list. Entries with no usable metadata still yield a record
// carrying only the source, so downstream deduplication and enrichment
// can act on whatever is present.
func ParseReferences(teiXML, source string) ([]biblio.Record, error) {
	decoder := xml.NewDecoder(strings.NewReader(teiXML))

	var records []biblio.Record
	inListBibl := false
	for {
		tok, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parsing TEI: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "listBibl":
				inListBibl = true
			case "biblStruct":
				if !inListBibl {
					continue
				}
				var entry biblStruct
				if err := decoder.DecodeElement(&entry, &el); err != nil {
					return nil, fmt.Errorf("parsing TEI entry: %w", err)
				}
				records = append(records, entry.toRecord(source))
			}
		case xml.EndElement:
			if el.Name.Local == "listBibl" {
				inListBibl = false
			}
		}
	}

	return records, nil
}

// toRecord maps a parsed entry to a Record.
func (b *biblStruct) toRecord(source string) biblio.Record {
	r := biblio.NewRecord(source, b.title())
	r.Year = b.year()
	r.DOI = b.doi()
	r.FirstAuthor = b.firstAuthor()
	return r
}

// title prefers the analytic-level (article) title, then falls back to
// the first title of the entry.
func (b *biblStruct) title() string {
	all := b.allTitles()
	for _, t := range all {
		if t.Level == "a" && strings.TrimSpace(t.Text) != "" {
			return strings.TrimSpace(t.Text)
		}
	}
	for _, t := range all {
		if strings.TrimSpace(t.Text) != "" {
			return strings.TrimSpace(t.Text)
		}
	}
	return ""
}

func (b *biblStruct) allTitles() []title {
	var all []title
	if b.Analytic != nil {
		all = append(all, b.Analytic.Titles...)
	}
	if b.Monogr != nil {
		all = append(all, b.Monogr.Titles...)
	}
	return all
}

// year takes the first 4 characters of the machine-readable @when
// attribute when present, else the first 4-digit run in the date text.
func (b *biblStruct) year() string {
	if b.Monogr == nil {
		return ""
	}
	for _, d := range b.Monogr.Imprint.Dates {
		if len(d.When) >= 4 {
			return d.When[:4]
		}
		if m := yearPattern.FindString(d.Text); m != "" {
			return m
		}
	}
	return ""
}

// doi returns the first DOI-typed identifier anywhere in the entry.
func (b *biblStruct) doi() string {
	var all []idno
	all = append(all, b.IDNos...)
	if b.Analytic != nil {
		all = append(all, b.Analytic.IDNos...)
	}
	if b.Monogr != nil {
		all = append(all, b.Monogr.IDNos...)
	}
	for _, id := range all {
		if strings.EqualFold(id.Type, "DOI") && strings.TrimSpace(id.Text) != "" {
			return strings.TrimSpace(id.Text)
		}
	}
	return ""
}

// firstAuthor joins the first forename and surname of the first listed
// person, skipping absent parts.
func (b *biblStruct) firstAuthor() string {
	var authors []author
	if b.Analytic != nil {
		authors = append(authors, b.Analytic.Authors...)
	}
	if b.Monogr != nil {
		authors = append(authors, b.Monogr.Authors...)
	}

	for _, a := range authors {
		if a.PersName == nil {
			continue
		}
		var parts []string
		if len(a.PersName.Forenames) > 0 {
			if fn := strings.TrimSpace(a.PersName.Forenames[0].Text); fn != "" {
				parts = append(parts, fn)
			}
		}
		if sn := strings.TrimSpace(a.PersName.Surname); sn != "" {
			parts = append(parts, sn)
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	return ""
}
