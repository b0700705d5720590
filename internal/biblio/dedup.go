package biblio

// Deduplicate removes duplicate records in a single forward pass,
// first-seen-wins. A record with a DOI is judged by its normalized DOI
// alone; the title is not consulted. A record without a DOI is judged by
// its normalized title key. Records with neither key are always kept.
func Deduplicate(records []Record) []Record {
	seenDOI := make(map[string]bool)
	seenTitle := make(map[string]bool)

	unique := make([]Record, 0, len(records))
	for _, r := range records {
		if r.HasDOI() {
			key := NormalizeDOI(r.DOI)
			if seenDOI[key] {
				continue
			}
			seenDOI[key] = true
			unique = append(unique, r)
			continue
		}

		if r.TitleNorm != "" && seenTitle[r.TitleNorm] {
			continue
		}
		if r.TitleNorm != "" {
			seenTitle[r.TitleNorm] = true
		}
		unique = append(unique, r)
	}

	return unique
}
