// Package observability provides logging and metrics support for the
// ingestion service.
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("unit", "03-14").Msg("ingestion started")
//
// Add unit context to a logger:
//
//	logger = observability.WithUnitContext(logger, unit, source)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("paperdays")
//
// Record metrics:
//
//	metrics.RecordUnitCompleted(12.5)
//	metrics.RecordPapersUpserted(80, 30)
//	metrics.RecordPaperSkipped("below_citation_threshold")
//
// # Standard Fields
//
//   - run_id: ingestion run identifier
//   - unit: unit of work (a date, a month-day, or a shard URL)
//   - source: paper source (semantic_scholar)
//   - paper_id: paper identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
