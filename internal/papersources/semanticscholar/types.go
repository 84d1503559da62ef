// Package semanticscholar provides clients for the Semantic Scholar Graph
// API (paginated date-filtered search) and the Datasets API (bulk gzip
// NDJSON shards).
//
// API documentation: https://api.semanticscholar.org/api-docs/
package semanticscholar

import "encoding/json"

// SearchResponse represents the response from the paper search endpoint.
type SearchResponse struct {
	// Total is the total number of papers matching the query.
	Total int `json:"total"`

	// Offset is the current offset in the result set.
	Offset int `json:"offset"`

	// Next is the offset for the next page of results.
	// A value of 0 indicates no more results.
	Next int `json:"next"`

	// Data contains the list of papers returned by the search.
	Data []PaperResult `json:"data"`
}

// PaperResult represents a single paper in the Graph API response.
type PaperResult struct {
	// PaperID is the Semantic Scholar unique identifier for the paper.
	PaperID string `json:"paperId"`

	// Title is the title of the paper.
	Title string `json:"title"`

	// Year is the publication year.
	Year int `json:"year"`

	// PublicationDate is the full publication date in YYYY-MM-DD format.
	// The API may return a date that differs from the one the request
	// filtered on; only this reported value is trusted downstream.
	PublicationDate string `json:"publicationDate"`

	// Venue is the publication venue (conference, journal name, etc.).
	Venue string `json:"venue"`

	// Authors is the list of paper authors.
	Authors []Author `json:"authors"`

	// CitationCount is the number of citations this paper has received.
	CitationCount int `json:"citationCount"`

	// InfluentialCitationCount counts citations judged influential.
	InfluentialCitationCount int `json:"influentialCitationCount"`

	// ReferenceCount is the number of references in this paper.
	ReferenceCount int `json:"referenceCount"`

	// FieldsOfStudy is the subject-classification list; the first element
	// is the primary field.
	FieldsOfStudy []string `json:"fieldsOfStudy"`

	// URL is the Semantic Scholar landing page.
	URL string `json:"url"`

	// OpenAccessPDF contains the open access PDF location if available.
	OpenAccessPDF *OpenAccessPDF `json:"openAccessPdf,omitempty"`

	// ExternalIDs contains external identifiers for the paper (DOI etc).
	ExternalIDs *ExternalIDs `json:"externalIds,omitempty"`
}

// ExternalIDs contains external identifiers for a paper.
type ExternalIDs struct {
	// DOI is the Digital Object Identifier.
	DOI string `json:"DOI,omitempty"`

	// ArXiv is the ArXiv identifier.
	ArXiv string `json:"ArXiv,omitempty"`

	// PubMed is the PubMed identifier.
	PubMed string `json:"PubMed,omitempty"`
}

// Author represents a paper author in the Graph API.
type Author struct {
	// AuthorID is the Semantic Scholar unique identifier for the author.
	AuthorID string `json:"authorId,omitempty"`

	// Name is the author's name.
	Name string `json:"name"`
}

// OpenAccessPDF contains information about an open access PDF.
type OpenAccessPDF struct {
	// URL is the direct URL to the PDF.
	URL string `json:"url,omitempty"`

	// Status indicates the open access status (e.g., "HYBRID", "GOLD").
	Status string `json:"status,omitempty"`
}

// ErrorResponse represents an error response from the API.
type ErrorResponse struct {
	// Error is the error message from the API.
	Error string `json:"error,omitempty"`

	// Message is an alternative error message field.
	Message string `json:"message,omitempty"`
}

// DatasetRelease is the Datasets API description of one dataset within a
// release, carrying presigned shard download URLs.
type DatasetRelease struct {
	// Name is the dataset name ("papers").
	Name string `json:"name"`

	// README is the dataset description text.
	README string `json:"README,omitempty"`

	// Files is the list of presigned shard download URLs.
	Files []string `json:"files"`
}

// bulkRecord is one line of a bulk papers shard. The bulk export uses
// lowercased keys and a corpus ID rather than the Graph API paper ID, and
// fields of study may be objects carrying a category.
type bulkRecord struct {
	CorpusID                 int64             `json:"corpusid"`
	Title                    string            `json:"title"`
	Authors                  []Author          `json:"authors"`
	PublicationDate          string            `json:"publicationdate"`
	Venue                    string            `json:"venue"`
	Journal                  *bulkJournal      `json:"journal"`
	CitationCount            int               `json:"citationcount"`
	InfluentialCitationCount int               `json:"influentialcitationcount"`
	ReferenceCount           int               `json:"referencecount"`
	S2FieldsOfStudy          []bulkField       `json:"s2fieldsofstudy"`
	ExternalIDs              map[string]string `json:"externalids"`
	URL                      string            `json:"url"`
}

type bulkJournal struct {
	Name string `json:"name"`
}

// bulkField accepts both string and {category: ...} shapes; older releases
// emit plain strings.
type bulkField struct {
	Category string `json:"category"`
}

func (f *bulkField) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &f.Category)
	}

	type alias bulkField
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*f = bulkField(a)
	return nil
}
