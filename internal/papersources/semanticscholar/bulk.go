package semanticscholar

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/paperbirthdays/ingestion-service/internal/domain"
	"github.com/paperbirthdays/ingestion-service/internal/papersources"
)

const (
	// DefaultRelease resolves to the newest dataset release.
	DefaultRelease = "latest"

	// DefaultMaxShardRetries bounds whole-shard restarts after a stream
	// failure. Shard URLs are presigned and streams cannot be resumed
	// mid-file, so a broken download starts the shard over.
	DefaultMaxShardRetries = 5

	// shardRetryDelay is the pause between shard restart attempts.
	shardRetryDelay = 30 * time.Second

	// papersDataset is the dataset name within a release.
	papersDataset = "papers"

	// maxLineBytes bounds a single NDJSON line; some records carry very
	// large author lists.
	maxLineBytes = 16 << 20
)

// BulkClient implements papersources.BulkSource against the Datasets API.
// Shard listing goes through the rate-budgeted API client; shard downloads
// use presigned storage URLs that sit outside the API rate budget and are
// fetched with a plain streaming client.
type BulkClient struct {
	httpClient      *papersources.HTTPClient
	downloader      *http.Client
	config          Config
	maxShardRetries int
	retryDelay      time.Duration
}

// Compile-time check that BulkClient implements papersources.BulkSource.
var _ papersources.BulkSource = (*BulkClient)(nil)

// NewBulkClient creates a Datasets API client. The httpClient carries the
// shared rate budget used for listing; pass the same instance the search
// client uses.
func NewBulkClient(cfg Config, httpClient *papersources.HTTPClient) *BulkClient {
	if cfg.DatasetsURL == "" {
		cfg.DatasetsURL = DefaultDatasetsURL
	}
	if cfg.Release == "" {
		cfg.Release = DefaultRelease
	}
	if httpClient == nil {
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:      DefaultTimeout,
			APIKey:       cfg.APIKey,
			APIKeyHeader: APIKeyHeader,
		})
	}

	return &BulkClient{
		httpClient: httpClient,
		// No client timeout: a shard is multiple GB and streams for a
		// long time; cancellation comes from the request context.
		downloader:      &http.Client{},
		config:          cfg,
		maxShardRetries: DefaultMaxShardRetries,
		retryDelay:      shardRetryDelay,
	}
}

// ListShards returns the presigned download URLs for the papers dataset of
// the configured release.
func (c *BulkClient) ListShards(ctx context.Context) ([]string, error) {
	listURL := fmt.Sprintf("%s/release/%s/dataset/%s", c.config.DatasetsURL, c.config.Release, papersDataset)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing dataset shards: %w", err)
	}
	defer resp.Body.Close()

	if err := handleErrorResponse(resp); err != nil {
		return nil, err
	}

	var release DatasetRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}

	if len(release.Files) == 0 {
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, "release contains no shard files", nil)
	}

	return release.Files, nil
}

// StreamShard downloads one gzip NDJSON shard and invokes fn for every
// decoded record. A failed download or a corrupt stream restarts the whole
// shard, up to the retry bound; an error returned by fn aborts immediately
// and is returned unwrapped so callers keep their own failures.
func (c *BulkClient) StreamShard(ctx context.Context, shardURL string, fn func(domain.RawPaper) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxShardRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		abort, err := c.streamOnce(ctx, shardURL, fn)
		if err == nil {
			return nil
		}
		if abort || ctx.Err() != nil {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("shard retries exhausted: %w", lastErr)
}

// SourceType returns the source type identifier.
func (c *BulkClient) SourceType() domain.SourceType {
	return domain.SourceSemanticScholar
}

// streamOnce runs a single download attempt. The abort flag marks errors
// that must not trigger a shard restart (callback failures, cancellation).
func (c *BulkClient) streamOnce(ctx context.Context, shardURL string, fn func(domain.RawPaper) error) (abort bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, shardURL, nil)
	if err != nil {
		return true, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.downloader.Do(req)
	if err != nil {
		return false, fmt.Errorf("downloading shard: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drainBody(resp)
		return false, domain.NewExternalAPIError(sourceName, resp.StatusCode, "shard download failed", nil)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return false, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record bulkRecord
		if err := json.Unmarshal(line, &record); err != nil {
			// A malformed line is skipped rather than restarting a
			// multi-GB shard.
			continue
		}

		if err := fn(convertBulkRecord(record)); err != nil {
			return true, err
		}
	}

	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("reading shard stream: %w", err)
	}

	return false, nil
}

// convertBulkRecord converts a bulk export line to a raw record. The bulk
// export identifies papers by corpus ID, so that becomes the paper ID.
func convertBulkRecord(record bulkRecord) domain.RawPaper {
	paperID := strconv.FormatInt(record.CorpusID, 10)

	raw := domain.RawPaper{
		PaperID:                  paperID,
		Source:                   domain.SourceSemanticScholar,
		Title:                    record.Title,
		PublicationDate:          record.PublicationDate,
		Venue:                    record.Venue,
		CitationCount:            record.CitationCount,
		InfluentialCitationCount: record.InfluentialCitationCount,
		ReferenceCount:           record.ReferenceCount,
		DOI:                      record.ExternalIDs["DOI"],
		URL:                      record.URL,
	}

	for _, a := range record.Authors {
		raw.Authors = append(raw.Authors, a.Name)
	}

	for _, f := range record.S2FieldsOfStudy {
		if f.Category == "" {
			continue
		}
		if containsField(raw.FieldsOfStudy, f.Category) {
			continue
		}
		raw.FieldsOfStudy = append(raw.FieldsOfStudy, f.Category)
		if len(raw.FieldsOfStudy) == domain.MaxFieldsOfStudy {
			break
		}
	}

	if raw.Venue == "" && record.Journal != nil {
		raw.Venue = record.Journal.Name
	}
	if raw.Venue == "" {
		raw.Venue = domain.UnknownVenue
	}
	if raw.URL == "" {
		raw.URL = domain.PaperURL(paperID)
	}

	return raw
}

// containsField reports whether the category list already holds the label.
// The bulk export repeats categories across annotation models.
func containsField(fields []string, category string) bool {
	for _, f := range fields {
		if f == category {
			return true
		}
	}
	return false
}
