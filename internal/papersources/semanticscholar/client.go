package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paperbirthdays/ingestion-service/internal/domain"
	"github.com/paperbirthdays/ingestion-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default base URL for the Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultDatasetsURL is the default base URL for the Datasets API.
	DefaultDatasetsURL = "https://api.semanticscholar.org/datasets/v1"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the default search page size.
	DefaultPageSize = 100

	// APIKeyHeader is the header name for the Semantic Scholar API key.
	APIKeyHeader = "x-api-key"

	// paperFields is the field-selection list sent to the search endpoint.
	paperFields = "paperId,externalIds,title,year,publicationDate,venue,authors,citationCount,influentialCitationCount,referenceCount,fieldsOfStudy,url,openAccessPdf"

	// matchAllQuery filters by date alone; the search endpoint requires a
	// query term, so a wildcard is sent and publicationDateOrYear does the
	// real filtering.
	matchAllQuery = "*"

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"
)

// Config contains configuration options for the Semantic Scholar clients.
type Config struct {
	// BaseURL is the Graph API base URL. Defaults to DefaultBaseURL.
	BaseURL string

	// DatasetsURL is the Datasets API base URL. Defaults to
	// DefaultDatasetsURL.
	DatasetsURL string

	// Release is the bulk dataset release to ingest (e.g. "2025-12-09");
	// "latest" resolves to the most recent release.
	Release string

	// APIKey is the optional API key; authenticated requests get higher
	// rate limits.
	APIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// PageSize is the search page size.
	PageSize int
}

// Client implements papersources.PaperSource for the Graph API search
// endpoint, filtered to an exact publication date.
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
}

// Compile-time check that Client implements papersources.PaperSource.
var _ papersources.PaperSource = (*Client)(nil)

// NewClient creates a search client. The httpClient carries the shared rate
// budget and retry policy and must not be nil when workers run concurrently
// against this source.
func NewClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
	if httpClient == nil {
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:      cfg.Timeout,
			APIKey:       cfg.APIKey,
			APIKeyHeader: APIKeyHeader,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
	}
}

// FetchPage retrieves one page of papers published on the query date.
//
// A 400 response at a non-zero offset is the server's pagination ceiling
// (offset+limit beyond its hard result cap) and is surfaced as
// domain.ErrPaginationCeiling so the orchestrator treats it as end-of-data.
func (c *Client) FetchPage(ctx context.Context, q papersources.DateQuery) (*papersources.Page, error) {
	start := time.Now()

	searchURL, err := c.buildSearchURL(q)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	// Only a 400 past the first page is the ceiling. A 400 at offset zero
	// means the request itself is malformed and must surface as a failure,
	// not silently end the unit with zero records.
	if resp.StatusCode == http.StatusBadRequest && q.Offset > 0 {
		drainBody(resp)
		return nil, domain.ErrPaginationCeiling
	}

	if err := handleErrorResponse(resp); err != nil {
		return nil, err
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = c.config.PageSize
	}

	records := make([]domain.RawPaper, 0, len(searchResp.Data))
	for _, result := range searchResp.Data {
		records = append(records, convertSearchResult(result))
	}

	return &papersources.Page{
		Records:       records,
		Total:         searchResp.Total,
		HasMore:       len(searchResp.Data) == limit && searchResp.Next > 0,
		NextOffset:    searchResp.Next,
		FetchDuration: time.Since(start),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// buildSearchURL constructs the search API URL with query parameters.
func (c *Client) buildSearchURL(q papersources.DateQuery) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	searchURL := baseURL.JoinPath("paper", "search")

	limit := q.Limit
	if limit <= 0 {
		limit = c.config.PageSize
	}

	params := searchURL.Query()
	params.Set("query", matchAllQuery)
	params.Set("publicationDateOrYear", q.Date)
	params.Set("fields", paperFields)
	params.Set("limit", strconv.Itoa(limit))
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	searchURL.RawQuery = params.Encode()
	return searchURL.String(), nil
}

// convertSearchResult converts a Graph API result to a raw record. The
// server-reported publicationDate string is passed through verbatim.
func convertSearchResult(result PaperResult) domain.RawPaper {
	raw := domain.RawPaper{
		PaperID:                  result.PaperID,
		Source:                   domain.SourceSemanticScholar,
		Title:                    result.Title,
		PublicationDate:          result.PublicationDate,
		Venue:                    result.Venue,
		FieldsOfStudy:            capFields(result.FieldsOfStudy),
		CitationCount:            result.CitationCount,
		InfluentialCitationCount: result.InfluentialCitationCount,
		ReferenceCount:           result.ReferenceCount,
		URL:                      result.URL,
	}

	for _, a := range result.Authors {
		raw.Authors = append(raw.Authors, a.Name)
	}

	if result.ExternalIDs != nil {
		raw.DOI = result.ExternalIDs.DOI
	}

	if result.OpenAccessPDF != nil && result.OpenAccessPDF.URL != "" {
		raw.PDFURL = result.OpenAccessPDF.URL
		raw.IsOpenAccess = true
	}

	if raw.URL == "" && raw.PaperID != "" {
		raw.URL = domain.PaperURL(raw.PaperID)
	}
	if raw.Venue == "" {
		raw.Venue = domain.UnknownVenue
	}

	return raw
}

// capFields bounds the preserved raw field list.
func capFields(fields []string) []string {
	if len(fields) > domain.MaxFieldsOfStudy {
		return fields[:domain.MaxFieldsOfStudy]
	}
	return fields
}

// handleErrorResponse classifies non-2xx responses into domain errors.
func handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Read the error body (limit to 1MB to prevent resource exhaustion).
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, "failed to read error response", err)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		message := errResp.Error
		if message == "" {
			message = errResp.Message
		}
		if message == "" {
			message = string(body)
		}
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, message, nil)
	}

	return domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
}

// drainBody discards a response body so the connection can be reused.
func drainBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
}
