// Package ingestion coordinates the pipeline from source retrieval through
// validation to batched storage. Work is divided into independent units (one
// exact calendar date, or one bulk shard) that a fixed worker pool processes
// concurrently, sharing a single rate budget per source.
package ingestion

import (
	"fmt"
	"net/url"
	"path"
	"time"
)

// UnitMode classifies how a unit's records are retrieved.
type UnitMode string

// Unit modes. Annual units are date units generated from the run-ledger
// watermark; they are tracked separately for observability.
const (
	ModeDate   UnitMode = "date"
	ModeAnnual UnitMode = "annual"
	ModeBulk   UnitMode = "bulk"
)

// WorkUnit is one independently retryable slice of an ingestion run. Exactly
// one of Date or ShardURL is set, according to Mode.
type WorkUnit struct {
	Mode UnitMode

	// Date is the exact publication date to retrieve, YYYY-MM-DD.
	Date string

	// ShardURL is the bulk shard download URL.
	ShardURL string
}

// Label returns the unit identifier recorded in the run ledger.
func (u WorkUnit) Label() string {
	if u.Mode == ModeBulk {
		return shardLabel(u.ShardURL)
	}
	return u.Date
}

// shardLabel reduces a (typically presigned) shard URL to its file name so
// ledger rows stay readable and free of credentials.
func shardLabel(shardURL string) string {
	parsed, err := url.Parse(shardURL)
	if err != nil || parsed.Path == "" {
		return shardURL
	}
	return path.Base(parsed.Path)
}

// UnitsForMonthDay builds one date unit per year in [fromYear, toYear] for a
// MM-DD partition. Years where the day does not exist (Feb 29 outside leap
// years) are skipped.
func UnitsForMonthDay(monthDay string, fromYear, toYear int) ([]WorkUnit, error) {
	return unitsForMonthDay(ModeDate, monthDay, fromYear, toYear)
}

func unitsForMonthDay(mode UnitMode, monthDay string, fromYear, toYear int) ([]WorkUnit, error) {
	md, err := time.Parse("01-02", monthDay)
	if err != nil {
		return nil, fmt.Errorf("invalid month-day %q: %w", monthDay, err)
	}
	if fromYear > toYear {
		return nil, fmt.Errorf("year range [%d, %d] is empty", fromYear, toYear)
	}

	units := make([]WorkUnit, 0, toYear-fromYear+1)
	for year := fromYear; year <= toYear; year++ {
		date := time.Date(year, md.Month(), md.Day(), 0, 0, 0, 0, time.UTC)
		if date.Month() != md.Month() || date.Day() != md.Day() {
			continue
		}
		units = append(units, WorkUnit{Mode: mode, Date: date.Format("2006-01-02")})
	}
	return units, nil
}

// AllMonthDays returns every MM-DD partition in calendar order, including
// Feb 29.
func AllMonthDays() []string {
	days := make([]string, 0, 366)
	// 2024 is a leap year, so iterating it covers all 366 partitions.
	for d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); d.Year() == 2024; d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format("01-02"))
	}
	return days
}

// ShardUnits wraps bulk shard URLs as work units, preserving order.
func ShardUnits(urls []string) []WorkUnit {
	units := make([]WorkUnit, 0, len(urls))
	for _, u := range urls {
		units = append(units, WorkUnit{Mode: ModeBulk, ShardURL: u})
	}
	return units
}
