// Package validator enforces the minimum-quality gates a source record must
// pass before it becomes eligible for storage.
package validator

import (
	"fmt"
	"time"

	"github.com/paperbirthdays/ingestion-service/internal/domain"
	"github.com/paperbirthdays/ingestion-service/internal/fields"
)

// Quality gate bounds.
const (
	MinTitleLength = 5
	MaxTitleLength = 500
	MinYear        = 1900
	MaxYear        = 2030

	// DefaultCitationThreshold is the global minimum; inclusion requires
	// strictly more citations than the threshold.
	DefaultCitationThreshold = 10

	// DefaultMaxAuthorWarn flags papers with implausibly large author lists.
	DefaultMaxAuthorWarn = 500
)

// Reason classifies why a record was rejected. Rejections are expected and
// counted, not logged per-record.
type Reason string

// Rejection reasons.
const (
	ReasonMissingID          Reason = "missing_id"
	ReasonMissingTitle       Reason = "missing_title"
	ReasonTitleLength        Reason = "title_length"
	ReasonMissingExactDate   Reason = "missing_exact_date"
	ReasonYearOutOfRange     Reason = "year_out_of_range"
	ReasonBelowCitationFloor Reason = "below_citation_threshold"
	ReasonTooManyAuthors     Reason = "too_many_authors"
)

// RejectionError reports that a record failed a quality gate.
type RejectionError struct {
	Reason Reason
	Detail string
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	return fmt.Sprintf("record rejected (%s): %s", e.Reason, e.Detail)
}

// Config holds the validator's quality thresholds. The zero value is not
// usable; construct via DefaultConfig and override as needed. The value is
// immutable after construction and safe for concurrent use.
type Config struct {
	// CitationThreshold is the global citation floor; a record is accepted
	// only when citation_count > threshold.
	CitationThreshold int

	// FieldThresholds overrides the citation floor per canonical field.
	// Fields with faster citation cultures carry higher floors.
	FieldThresholds map[string]int

	// MaxAuthorWarn is the author count above which a record is flagged.
	MaxAuthorWarn int

	// StrictAuthorLimit escalates the author-count flag from a warning to a
	// rejection.
	StrictAuthorLimit bool
}

// DefaultConfig returns the standard quality gates: global citation floor 10
// with per-field overrides, author warning at 500 authors.
func DefaultConfig() Config {
	return Config{
		CitationThreshold: DefaultCitationThreshold,
		FieldThresholds: map[string]int{
			"Medicine":         50,
			"Biology":          30,
			"Computer Science": 20,
			"Physics":          25,
			"Chemistry":        25,
		},
		MaxAuthorWarn: DefaultMaxAuthorWarn,
	}
}

// Result carries the derived values a passing record yields: the parsed
// publication date and the canonical field used for threshold selection.
type Result struct {
	PublicationDate time.Time
	Year            int
	MonthDay        string
	Field           string

	// Warned is set when the record passed but tripped a non-fatal gate
	// (currently only the author-count flag).
	Warned bool
}

// Validator applies the quality gates. It is pure: it never touches the
// store and has no side effects, so the same record always yields the same
// verdict under the same Config.
type Validator struct {
	cfg Config
}

// New creates a Validator with the given configuration.
func New(cfg Config) *Validator {
	if cfg.CitationThreshold == 0 {
		cfg.CitationThreshold = DefaultCitationThreshold
	}
	if cfg.MaxAuthorWarn == 0 {
		cfg.MaxAuthorWarn = DefaultMaxAuthorWarn
	}
	return &Validator{cfg: cfg}
}

// Threshold returns the citation floor in effect for a canonical field.
func (v *Validator) Threshold(field string) int {
	if t, ok := v.cfg.FieldThresholds[field]; ok {
		return t
	}
	return v.cfg.CitationThreshold
}

// Validate checks a raw record against the quality gates. It returns a
// Result when the record is eligible for storage, or a *RejectionError
// describing the first gate that failed.
func (v *Validator) Validate(raw domain.RawPaper) (Result, error) {
	if raw.PaperID == "" {
		return Result{}, &RejectionError{ReasonMissingID, "no external id"}
	}

	if raw.Title == "" {
		return Result{}, &RejectionError{ReasonMissingTitle, "no title"}
	}
	if n := len(raw.Title); n < MinTitleLength || n > MaxTitleLength {
		return Result{}, &RejectionError{ReasonTitleLength,
			fmt.Sprintf("title length %d outside [%d, %d]", n, MinTitleLength, MaxTitleLength)}
	}

	pubDate, err := domain.ParseExactDate(raw.PublicationDate)
	if err != nil {
		return Result{}, &RejectionError{ReasonMissingExactDate, err.Error()}
	}

	year := pubDate.Year()
	if year < MinYear || year > MaxYear {
		return Result{}, &RejectionError{ReasonYearOutOfRange,
			fmt.Sprintf("year %d outside [%d, %d]", year, MinYear, MaxYear)}
	}

	field := fields.Normalize(raw.FieldsOfStudy)
	if raw.CitationCount <= v.Threshold(field) {
		return Result{}, &RejectionError{ReasonBelowCitationFloor,
			fmt.Sprintf("%d citations, floor %d for %s", raw.CitationCount, v.Threshold(field), field)}
	}

	result := Result{
		PublicationDate: pubDate,
		Year:            year,
		MonthDay:        domain.MonthDayOf(pubDate),
		Field:           field,
	}

	if len(raw.Authors) > v.cfg.MaxAuthorWarn {
		if v.cfg.StrictAuthorLimit {
			return Result{}, &RejectionError{ReasonTooManyAuthors,
				fmt.Sprintf("%d authors exceeds limit %d", len(raw.Authors), v.cfg.MaxAuthorWarn)}
		}
		result.Warned = true
	}

	return result, nil
}
