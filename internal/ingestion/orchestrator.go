package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/paperbirthdays/ingestion-service/internal/domain"
	"github.com/paperbirthdays/ingestion-service/internal/observability"
	"github.com/paperbirthdays/ingestion-service/internal/papersources"
	"github.com/paperbirthdays/ingestion-service/internal/repository"
	"github.com/paperbirthdays/ingestion-service/internal/validator"
)

// Pipeline defaults.
const (
	DefaultWorkers   = 3
	DefaultBatchSize = 1000
)

// Config holds orchestrator settings. The value is immutable after
// construction.
type Config struct {
	// Workers is the number of concurrent unit workers. All workers share
	// the source's rate budget, so more workers never exceed it.
	Workers int

	// BatchSize is the number of validated papers buffered before a
	// batched upsert flush.
	BatchSize int

	// DefaultWatermark is the ledger watermark assumed before any run has
	// ever completed.
	DefaultWatermark time.Time
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return c
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Source    papersources.PaperSource
	Bulk      papersources.BulkSource
	Validator *validator.Validator
	Papers    repository.PaperRepository
	Runs      repository.RunRepository
	Failures  repository.FailedFetchRepository
	Metrics   *observability.Metrics
	Logger    zerolog.Logger
}

// RunSummary aggregates the outcome of one multi-unit run.
type RunSummary struct {
	UnitsTotal     int
	UnitsSucceeded int
	UnitsFailed    int
	PapersFetched  int
	PapersInserted int
	PapersUpdated  int
	PapersSkipped  int
	Duration       time.Duration
}

// Orchestrator runs units of ingestion work through the fetch → validate →
// upsert pipeline. A unit failure is recorded and does not abort the other
// units of the run.
type Orchestrator struct {
	source    papersources.PaperSource
	bulk      papersources.BulkSource
	validator *validator.Validator
	papers    repository.PaperRepository
	runs      repository.RunRepository
	failures  repository.FailedFetchRepository
	metrics   *observability.Metrics
	logger    zerolog.Logger
	cfg       Config

	// now is replaceable for deterministic tests of watermark math.
	now func() time.Time
}

// New creates an Orchestrator. Source, Validator, Papers, Runs and Metrics
// are required; Bulk and Failures may be nil when the corresponding modes
// and bookkeeping are not used.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("paper source is required")
	}
	if deps.Validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if deps.Papers == nil {
		return nil, fmt.Errorf("paper repository is required")
	}
	if deps.Runs == nil {
		return nil, fmt.Errorf("run repository is required")
	}
	if deps.Metrics == nil {
		return nil, fmt.Errorf("metrics are required")
	}

	return &Orchestrator{
		source:    deps.Source,
		bulk:      deps.Bulk,
		validator: deps.Validator,
		papers:    deps.Papers,
		runs:      deps.Runs,
		failures:  deps.Failures,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}, nil
}

// Run processes the units on a fixed worker pool and returns the aggregated
// summary. It returns an error only when units were given and none of them
// succeeded; partial failure is reported through the summary and the run
// ledger.
func (o *Orchestrator) Run(ctx context.Context, units []WorkUnit) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{UnitsTotal: len(units)}
	if len(units) == 0 {
		return summary, nil
	}

	workers := o.cfg.Workers
	if workers > len(units) {
		workers = len(units)
	}

	unitCh := make(chan WorkUnit)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range unitCh {
				t := o.processUnit(ctx, u)
				mu.Lock()
				summary.PapersFetched += t.fetched
				summary.PapersInserted += t.inserted
				summary.PapersUpdated += t.updated
				summary.PapersSkipped += t.skipped
				if t.err != nil {
					summary.UnitsFailed++
				} else {
					summary.UnitsSucceeded++
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, u := range units {
		select {
		case unitCh <- u:
		case <-ctx.Done():
			break feed
		}
	}
	close(unitCh)
	wg.Wait()

	summary.Duration = time.Since(start)

	o.logger.Info().
		Int("units_total", summary.UnitsTotal).
		Int("units_succeeded", summary.UnitsSucceeded).
		Int("units_failed", summary.UnitsFailed).
		Int("papers_fetched", summary.PapersFetched).
		Int("papers_inserted", summary.PapersInserted).
		Int("papers_updated", summary.PapersUpdated).
		Int("papers_skipped", summary.PapersSkipped).
		Dur("duration", summary.Duration).
		Msg("ingestion run finished")

	if summary.UnitsSucceeded == 0 {
		return summary, fmt.Errorf("all %d units failed", summary.UnitsFailed)
	}
	return summary, nil
}

// unitTally accumulates per-unit counters.
type unitTally struct {
	fetched  int
	inserted int
	updated  int
	skipped  int
	err      error
}

// processUnit runs one unit end to end, then finalizes its ledger row. The
// ledger write is best-effort: a ledger error is logged but does not turn a
// successful unit into a failed one.
func (o *Orchestrator) processUnit(ctx context.Context, u WorkUnit) unitTally {
	runID := uuid.New()
	source := string(o.source.SourceType())

	// The run id and unit travel in the context so code paths that only
	// receive a context can still tag their log lines.
	ctx = observability.WithRunID(ctx, runID.String())
	ctx = observability.WithUnit(ctx, u.Label(), source)

	logger := observability.WithUnitContext(o.logger, u.Label(), source)
	logger = observability.WithRunContext(logger, runID.String())
	o.metrics.RecordUnitStarted(string(u.Mode))
	start := time.Now()

	var tally unitTally
	switch u.Mode {
	case ModeBulk:
		tally = o.runBulkUnit(ctx, u, logger)
	default:
		tally = o.runDateUnit(ctx, u, logger)
	}
	elapsed := time.Since(start)

	run := &domain.IngestionRun{
		ID:            runID,
		Unit:          u.Label(),
		Source:        o.source.SourceType(),
		PapersFetched: tally.fetched,
		PapersNew:     tally.inserted,
		PapersUpdated: tally.updated,
		Status:        domain.RunStatusCompleted,
		Duration:      elapsed,
	}

	if tally.err != nil {
		run.Status = domain.RunStatusFailed
		run.ErrorMessage = tally.err.Error()
		o.metrics.RecordUnitFailed(string(u.Mode), elapsed.Seconds())
		logger.Error().Err(tally.err).Dur("duration", elapsed).Msg("unit failed")
		o.recordFailure(ctx, u, tally.err, logger)
	} else {
		o.metrics.RecordUnitCompleted(string(u.Mode), elapsed.Seconds())
		logger.Info().
			Int("fetched", tally.fetched).
			Int("inserted", tally.inserted).
			Int("updated", tally.updated).
			Int("skipped", tally.skipped).
			Dur("duration", elapsed).
			Msg("unit completed")
	}

	if err := o.runs.Record(ctx, run); err != nil {
		logger.Error().Err(err).Msg("failed to record run ledger entry")
	}
	return tally
}

// recordFailure appends a failed-fetch row for later inspection.
func (o *Orchestrator) recordFailure(ctx context.Context, u WorkUnit, cause error, logger zerolog.Logger) {
	if o.failures == nil {
		return
	}
	fetch := &domain.FailedFetch{
		Unit:         u.Label(),
		Source:       o.source.SourceType(),
		ErrorMessage: cause.Error(),
	}
	if err := o.failures.Record(ctx, fetch); err != nil {
		logger.Error().Err(err).Msg("failed to record failed fetch")
	}
}

// runDateUnit pages through the source for one exact date until the server
// reports no further pages or its pagination ceiling. The ceiling is a normal
// termination: everything reachable below it has been ingested.
func (o *Orchestrator) runDateUnit(ctx context.Context, u WorkUnit, logger zerolog.Logger) unitTally {
	var tally unitTally
	buf := newBatch(o.cfg.BatchSize)

	offset := 0
	for {
		page, err := o.source.FetchPage(ctx, papersources.DateQuery{Date: u.Date, Offset: offset})
		if errors.Is(err, domain.ErrPaginationCeiling) {
			logger.Debug().Int("offset", offset).Msg("pagination ceiling reached")
			break
		}
		if err != nil {
			tally.err = fmt.Errorf("fetch page at offset %d: %w", offset, err)
			o.metrics.RecordSourceRequestFailed(errorType(err))
			return tally
		}

		o.metrics.RecordPageFetched(len(page.Records))
		tally.fetched += len(page.Records)

		for _, raw := range page.Records {
			if o.admit(raw, &tally, buf, logger) && buf.full() {
				if err := o.flush(ctx, buf, &tally); err != nil {
					tally.err = err
					return tally
				}
			}
		}

		if !page.HasMore {
			break
		}
		offset = page.NextOffset
	}

	if err := o.flush(ctx, buf, &tally); err != nil {
		tally.err = err
	}
	return tally
}

// runBulkUnit streams one shard, validating and buffering records as they
// decode. A flush error aborts the stream; the shard client's own retries
// cover transport breaks, not storage failures.
func (o *Orchestrator) runBulkUnit(ctx context.Context, u WorkUnit, logger zerolog.Logger) unitTally {
	if o.bulk == nil {
		return unitTally{err: fmt.Errorf("no bulk source configured")}
	}

	var tally unitTally
	buf := newBatch(o.cfg.BatchSize)

	err := o.bulk.StreamShard(ctx, u.ShardURL, func(raw domain.RawPaper) error {
		tally.fetched++
		if o.admit(raw, &tally, buf, logger) && buf.full() {
			return o.flush(ctx, buf, &tally)
		}
		return nil
	})
	if err != nil {
		tally.err = fmt.Errorf("stream shard: %w", err)
		o.metrics.RecordSourceRequestFailed(errorType(err))
		return tally
	}

	if err := o.flush(ctx, buf, &tally); err != nil {
		tally.err = err
	}
	return tally
}

// admit validates one raw record and buffers it when eligible. Rejections
// are counted, not treated as errors; non-fatal flags are logged.
func (o *Orchestrator) admit(raw domain.RawPaper, tally *unitTally, buf *batch, logger zerolog.Logger) bool {
	result, err := o.validator.Validate(raw)
	if err != nil {
		tally.skipped++
		o.metrics.RecordPaperSkipped(rejectionReason(err))
		return false
	}
	if result.Warned {
		paperLogger := observability.WithPaperContext(logger, raw.PaperID)
		paperLogger.Warn().
			Int("author_count", len(raw.Authors)).
			Msg("record admitted with implausibly large author list")
	}
	buf.add(buildPaper(raw, result))
	return true
}

// flush writes the buffered papers. A batch failure falls back to row-by-row
// upserts so one bad record does not discard the rest of the buffer; rows
// that still fail are skipped and counted.
func (o *Orchestrator) flush(ctx context.Context, buf *batch, tally *unitTally) error {
	papers := buf.take()
	if len(papers) == 0 {
		return nil
	}

	res, err := o.papers.BatchUpsert(ctx, papers)
	if err == nil {
		tally.inserted += res.Inserted
		tally.updated += res.Updated
		o.metrics.RecordPapersUpserted(res.Inserted, res.Updated)
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("flush batch: %w", err)
	}

	logger := o.contextLogger(ctx)
	logger.Warn().Err(err).Int("batch_size", len(papers)).
		Msg("batch upsert failed, retrying row by row")

	var inserted, updated int
	for _, p := range papers {
		outcome, rerr := o.papers.Upsert(ctx, p)
		if rerr != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("flush row %s: %w", p.PaperID, rerr)
			}
			tally.skipped++
			o.metrics.RecordPaperSkipped("storage_error")
			paperLogger := observability.WithPaperContext(logger, p.PaperID)
			paperLogger.Warn().Err(rerr).
				Msg("skipping unstorable record")
			continue
		}
		if outcome == repository.OutcomeInserted {
			inserted++
		} else {
			updated++
		}
	}
	tally.inserted += inserted
	tally.updated += updated
	o.metrics.RecordPapersUpserted(inserted, updated)
	return nil
}

// contextLogger rebuilds the unit and run log fields from context values for
// code paths that only receive a context.
func (o *Orchestrator) contextLogger(ctx context.Context) zerolog.Logger {
	logger := o.logger
	if unit, source := observability.UnitFromContext(ctx); unit != "" {
		logger = observability.WithUnitContext(logger, unit, source)
	}
	if runID := observability.RunIDFromContext(ctx); runID != "" {
		logger = observability.WithRunContext(logger, runID)
	}
	return logger
}

// buildPaper combines a raw record with its validation result into the
// stored representation.
func buildPaper(raw domain.RawPaper, result validator.Result) *domain.Paper {
	return &domain.Paper{
		PaperID:                  raw.PaperID,
		Source:                   raw.Source,
		Title:                    raw.Title,
		Authors:                  raw.Authors,
		AuthorCount:              len(raw.Authors),
		PublicationDate:          result.PublicationDate,
		PublicationMonthDay:      result.MonthDay,
		Year:                     result.Year,
		Venue:                    raw.Venue,
		Field:                    result.Field,
		FieldsOfStudy:            raw.FieldsOfStudy,
		CitationCount:            raw.CitationCount,
		InfluentialCitationCount: raw.InfluentialCitationCount,
		ReferenceCount:           raw.ReferenceCount,
		DOI:                      raw.DOI,
		URL:                      raw.URL,
		PDFURL:                   raw.PDFURL,
		IsOpenAccess:             raw.IsOpenAccess,
	}
}

// rejectionReason extracts the metric label for a validation failure.
func rejectionReason(err error) string {
	var rej *validator.RejectionError
	if errors.As(err, &rej) {
		return string(rej.Reason)
	}
	return "invalid"
}

// errorType classifies a source error for the failure metric.
func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "other"
	}
}

// batch buffers validated papers up to a flush limit.
type batch struct {
	papers []*domain.Paper
	limit  int
}

func newBatch(limit int) *batch {
	return &batch{papers: make([]*domain.Paper, 0, limit), limit: limit}
}

func (b *batch) add(p *domain.Paper) {
	b.papers = append(b.papers, p)
}

func (b *batch) full() bool {
	return len(b.papers) >= b.limit
}

// take returns the buffered papers and resets the buffer.
func (b *batch) take() []*domain.Paper {
	papers := b.papers
	b.papers = make([]*domain.Paper, 0, b.limit)
	return papers
}
