package domain

import (
	"fmt"
	"time"
)

// SourceType identifies the data provider a paper was ingested from.
type SourceType string

// Supported paper sources. Only Semantic Scholar is exercised today, but the
// dedup key on (paper_id, source) and the field-authority rules are written
// so additional providers can be added without a schema change.
const (
	SourceSemanticScholar SourceType = "semantic_scholar"
	SourceOpenAlex        SourceType = "openalex"
	SourceArXiv           SourceType = "arxiv"
	SourcePubMed          SourceType = "pubmed"
	SourceCrossref        SourceType = "crossref"
)

// MaxFieldsOfStudy caps how many raw subject labels are preserved per paper.
const MaxFieldsOfStudy = 10

// UnknownVenue is stored when a source reports neither a venue nor a
// journal name.
const UnknownVenue = "Unknown Venue"

// RawPaper is a record as reported by a source, before validation and
// normalization. PublicationDate carries the server-reported date string
// verbatim: the requesting client is not authoritative over what date the
// server actually returns, so the string is never reconstructed locally.
type RawPaper struct {
	PaperID                  string
	Source                   SourceType
	Title                    string
	Authors                  []string
	PublicationDate          string
	Venue                    string
	FieldsOfStudy            []string
	CitationCount            int
	InfluentialCitationCount int
	ReferenceCount           int
	DOI                      string
	URL                      string
	PDFURL                   string
	IsOpenAccess             bool
}

// Paper is a validated, normalized scholarly work as stored in the papers
// table. (PaperID, Source) is the dedup key; PaperID alone is treated as
// globally unique in the current single-source deployment.
type Paper struct {
	PaperID                  string
	Source                   SourceType
	Title                    string
	Authors                  []string
	AuthorCount              int
	PublicationDate          time.Time
	PublicationMonthDay      string
	Year                     int
	Venue                    string
	Field                    string
	FieldsOfStudy            []string
	CitationCount            int
	InfluentialCitationCount int
	ReferenceCount           int
	DOI                      string
	URL                      string
	PDFURL                   string
	IsOpenAccess             bool
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// MonthDayOf extracts the "MM-DD" partition key from a publication date.
func MonthDayOf(date time.Time) string {
	return fmt.Sprintf("%02d-%02d", date.Month(), date.Day())
}

// ParseExactDate parses a source-reported date string, accepting only exact
// calendar dates in YYYY-MM-DD form. Partial dates such as "2020" or
// "2020-01" return an error; inclusion requires an exact date.
func ParseExactDate(s string) (time.Time, error) {
	if len(s) != 10 {
		return time.Time{}, fmt.Errorf("not an exact YYYY-MM-DD date: %q", s)
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing publication date %q: %w", s, err)
	}
	return t, nil
}

// PaperURL returns the canonical Semantic Scholar landing page for a paper ID.
// Used as the URL fallback when the source record omits one.
func PaperURL(paperID string) string {
	return "https://www.semanticscholar.org/paper/" + paperID
}
