package semanticscholar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperbirthdays/ingestion-service/internal/domain"
	"github.com/paperbirthdays/ingestion-service/internal/papersources"
)

// testHTTPClient returns an HTTP client with a wide-open rate budget and
// millisecond delays so tests run fast.
func testHTTPClient() *papersources.HTTPClient {
	return papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:           5 * time.Second,
		RateLimit:         1000,
		BurstSize:         100,
		MaxRetries:        1,
		RetryDelay:        time.Millisecond,
		RateLimitCooldown: time.Millisecond,
	})
}

func TestFetchPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/paper/search", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "*", q.Get("query"))
		assert.Equal(t, "2021-03-14", q.Get("publicationDateOrYear"))
		assert.Equal(t, "100", q.Get("limit"))
		assert.Empty(t, q.Get("offset"))
		assert.Contains(t, q.Get("fields"), "publicationDate")
		assert.Contains(t, q.Get("fields"), "citationCount")

		resp := SearchResponse{
			Total: 2,
			Next:  0,
			Data: []PaperResult{
				{
					PaperID:                  "abc123",
					Title:                    "Attention Is All You Need",
					Year:                     2021,
					PublicationDate:          "2021-03-14",
					Venue:                    "NeurIPS",
					Authors:                  []Author{{AuthorID: "1", Name: "A. Vaswani"}, {AuthorID: "2", Name: "N. Shazeer"}},
					CitationCount:            90000,
					InfluentialCitationCount: 9000,
					ReferenceCount:           42,
					FieldsOfStudy:            []string{"Computer Science"},
					URL:                      "https://example.org/abc123",
					ExternalIDs:              &ExternalIDs{DOI: "10.1000/xyz"},
					OpenAccessPDF:            &OpenAccessPDF{URL: "https://example.org/abc123.pdf", Status: "GOLD"},
				},
				{
					PaperID:         "def456",
					Title:           "A Paper Without Extras",
					Year:            2021,
					PublicationDate: "2021-03-14",
					CitationCount:   12,
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testHTTPClient())

	page, err := client.FetchPage(context.Background(), papersources.DateQuery{Date: "2021-03-14"})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)

	assert.Equal(t, 2, page.Total)
	assert.False(t, page.HasMore)

	first := page.Records[0]
	assert.Equal(t, "abc123", first.PaperID)
	assert.Equal(t, domain.SourceSemanticScholar, first.Source)
	assert.Equal(t, "Attention Is All You Need", first.Title)
	assert.Equal(t, "2021-03-14", first.PublicationDate)
	assert.Equal(t, "NeurIPS", first.Venue)
	assert.Equal(t, []string{"A. Vaswani", "N. Shazeer"}, first.Authors)
	assert.Equal(t, []string{"Computer Science"}, first.FieldsOfStudy)
	assert.Equal(t, 90000, first.CitationCount)
	assert.Equal(t, 9000, first.InfluentialCitationCount)
	assert.Equal(t, 42, first.ReferenceCount)
	assert.Equal(t, "10.1000/xyz", first.DOI)
	assert.Equal(t, "https://example.org/abc123", first.URL)
	assert.Equal(t, "https://example.org/abc123.pdf", first.PDFURL)
	assert.True(t, first.IsOpenAccess)

	second := page.Records[1]
	assert.Equal(t, domain.UnknownVenue, second.Venue)
	assert.Equal(t, "https://www.semanticscholar.org/paper/def456", second.URL)
	assert.Empty(t, second.DOI)
	assert.False(t, second.IsOpenAccess)
}

func TestFetchPageServerDateTrusted(t *testing.T) {
	// The server may report a different publication date than the one
	// requested; the reported value must survive conversion untouched.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SearchResponse{
			Total: 1,
			Data: []PaperResult{
				{PaperID: "p1", Title: "Drifting Date", PublicationDate: "2021-03-15"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testHTTPClient())

	page, err := client.FetchPage(context.Background(), papersources.DateQuery{Date: "2021-03-14"})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "2021-03-15", page.Records[0].PublicationDate)
}

func TestFetchPagePagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("offset"))

		data := make([]PaperResult, 100)
		for i := range data {
			data[i] = PaperResult{PaperID: "p", Title: "t", PublicationDate: "2021-03-14"}
		}
		json.NewEncoder(w).Encode(SearchResponse{Total: 250, Offset: 100, Next: 200, Data: data})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testHTTPClient())

	page, err := client.FetchPage(context.Background(), papersources.DateQuery{Date: "2021-03-14", Limit: 100, Offset: 100})
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	assert.Equal(t, 200, page.NextOffset)
}

func TestFetchPagePaginationCeiling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "offset + limit must be < 1000"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testHTTPClient())

	// At offset zero a 400 is a real request error, not the ceiling.
	_, err := client.FetchPage(context.Background(), papersources.DateQuery{Date: "2021-03-14"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrPaginationCeiling)

	var apiErr *domain.ExternalAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	// Deep into the result set the same status means end-of-data.
	_, err = client.FetchPage(context.Background(), papersources.DateQuery{Date: "2021-03-14", Offset: 900})
	assert.ErrorIs(t, err, domain.ErrPaginationCeiling)
}

func TestFetchPageServerErrorRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(SearchResponse{
			Total: 1,
			Data:  []PaperResult{{PaperID: "p1", Title: "Recovered", PublicationDate: "2021-03-14"}},
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testHTTPClient())

	page, err := client.FetchPage(context.Background(), papersources.DateQuery{Date: "2021-03-14"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "Recovered", page.Records[0].Title)
}

func TestFetchPageAPIKeySent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-key", r.Header.Get("x-api-key"))
		json.NewEncoder(w).Encode(SearchResponse{})
	}))
	defer server.Close()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		RateLimit:    1000,
		BurstSize:    10,
		APIKey:       "secret-key",
		APIKeyHeader: APIKeyHeader,
	})
	client := NewClient(Config{BaseURL: server.URL}, httpClient)

	_, err := client.FetchPage(context.Background(), papersources.DateQuery{Date: "2021-03-14"})
	require.NoError(t, err)
}

func TestFetchPageFieldsCapped(t *testing.T) {
	fields := make([]string, domain.MaxFieldsOfStudy+5)
	for i := range fields {
		fields[i] = "Field"
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SearchResponse{
			Total: 1,
			Data:  []PaperResult{{PaperID: "p1", Title: "t", FieldsOfStudy: fields}},
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testHTTPClient())

	page, err := client.FetchPage(context.Background(), papersources.DateQuery{Date: "2021-03-14"})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Len(t, page.Records[0].FieldsOfStudy, domain.MaxFieldsOfStudy)
}

func TestFetchPageContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, testHTTPClient())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FetchPage(ctx, papersources.DateQuery{Date: "2021-03-14"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled))
}

func TestClientMetadata(t *testing.T) {
	client := NewClient(Config{}, testHTTPClient())
	assert.Equal(t, domain.SourceSemanticScholar, client.SourceType())
	assert.Equal(t, "Semantic Scholar", client.Name())
}
