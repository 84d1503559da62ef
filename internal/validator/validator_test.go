package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperbirthdays/ingestion-service/internal/domain"
)

func validRaw() domain.RawPaper {
	return domain.RawPaper{
		PaperID:         "abc123",
		Source:          domain.SourceSemanticScholar,
		Title:           "A Perfectly Reasonable Paper Title",
		Authors:         []string{"A. Author", "B. Author"},
		PublicationDate: "2020-01-15",
		FieldsOfStudy:   []string{"History"},
		CitationCount:   42,
	}
}

func rejectionReason(t *testing.T, err error) Reason {
	t.Helper()
	var rej *RejectionError
	require.True(t, errors.As(err, &rej), "expected RejectionError, got %v", err)
	return rej.Reason
}

func TestValidateAccepts(t *testing.T) {
	v := New(DefaultConfig())

	res, err := v.Validate(validRaw())
	require.NoError(t, err)
	assert.Equal(t, 2020, res.Year)
	assert.Equal(t, "01-15", res.MonthDay)
	assert.Equal(t, "History", res.Field)
	assert.False(t, res.Warned)
}

func TestValidateRejects(t *testing.T) {
	v := New(DefaultConfig())

	tests := []struct {
		name   string
		mutate func(*domain.RawPaper)
		want   Reason
	}{
		{"missing id", func(r *domain.RawPaper) { r.PaperID = "" }, ReasonMissingID},
		{"missing title", func(r *domain.RawPaper) { r.Title = "" }, ReasonMissingTitle},
		{"title too short", func(r *domain.RawPaper) { r.Title = "Hi" }, ReasonTitleLength},
		{"title too long", func(r *domain.RawPaper) { r.Title = strings.Repeat("x", 501) }, ReasonTitleLength},
		{"partial date year only", func(r *domain.RawPaper) { r.PublicationDate = "2020" }, ReasonMissingExactDate},
		{"partial date year-month", func(r *domain.RawPaper) { r.PublicationDate = "2020-01" }, ReasonMissingExactDate},
		{"no date", func(r *domain.RawPaper) { r.PublicationDate = "" }, ReasonMissingExactDate},
		{"year below range", func(r *domain.RawPaper) { r.PublicationDate = "1899-12-31" }, ReasonYearOutOfRange},
		{"year above range", func(r *domain.RawPaper) { r.PublicationDate = "2031-01-01" }, ReasonYearOutOfRange},
		{"citations at default floor", func(r *domain.RawPaper) { r.CitationCount = 10 }, ReasonBelowCitationFloor},
		{"citations below default floor", func(r *domain.RawPaper) { r.CitationCount = 5 }, ReasonBelowCitationFloor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(&raw)
			_, err := v.Validate(raw)
			assert.Equal(t, tt.want, rejectionReason(t, err))
		})
	}
}

func TestValidatePerFieldThreshold(t *testing.T) {
	v := New(DefaultConfig())

	// Medicine carries a floor of 50; 42 citations is enough for the default
	// floor but not for Medicine.
	raw := validRaw()
	raw.FieldsOfStudy = []string{"Medicine"}
	_, err := v.Validate(raw)
	assert.Equal(t, ReasonBelowCitationFloor, rejectionReason(t, err))

	raw.CitationCount = 51
	res, err := v.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "Medicine", res.Field)
}

// Raising the citation count above the floor, all else fixed, must flip a
// rejected record to accepted, and lowering it must flip it back.
func TestValidateThresholdMonotonicity(t *testing.T) {
	v := New(DefaultConfig())
	raw := validRaw()

	raw.CitationCount = v.Threshold("History")
	_, err := v.Validate(raw)
	assert.Error(t, err)

	raw.CitationCount = v.Threshold("History") + 1
	_, err = v.Validate(raw)
	assert.NoError(t, err)

	raw.CitationCount = v.Threshold("History")
	_, err = v.Validate(raw)
	assert.Error(t, err)
}

func TestValidateAuthorCount(t *testing.T) {
	many := make([]string, 501)
	for i := range many {
		many[i] = "Author"
	}

	t.Run("warning by default", func(t *testing.T) {
		v := New(DefaultConfig())
		raw := validRaw()
		raw.Authors = many
		res, err := v.Validate(raw)
		require.NoError(t, err)
		assert.True(t, res.Warned)
	})

	t.Run("rejection when strict", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.StrictAuthorLimit = true
		v := New(cfg)
		raw := validRaw()
		raw.Authors = many
		_, err := v.Validate(raw)
		assert.Equal(t, ReasonTooManyAuthors, rejectionReason(t, err))
	})
}

func TestThresholdFallback(t *testing.T) {
	v := New(Config{CitationThreshold: 7})
	assert.Equal(t, 7, v.Threshold("Medicine"))
	assert.Equal(t, 7, v.Threshold("Other"))
}
