package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  string
	}{
		{"empty list", nil, "Other"},
		{"empty primary field", []string{""}, "Other"},
		{"exact category name", []string{"Medicine"}, "Medicine"},
		{"case insensitive", []string{"mEdIcInE"}, "Medicine"},
		{"substring match", []string{"Clinical Medicine and Surgery"}, "Medicine"},
		{"keyword variant", []string{"Machine Learning"}, "Computer Science"},
		{"business maps to economics", []string{"Business"}, "Economics"},
		{"geology maps to environmental science", []string{"Geology"}, "Environmental Science"},
		{"unknown primary field", []string{"Basket Weaving"}, "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

// Only the first element may influence the result. A clearer secondary field
// must never override the primary one.
func TestNormalizePrimaryFieldOnly(t *testing.T) {
	t.Run("trailing elements are ignored", func(t *testing.T) {
		assert.Equal(t, Normalize([]string{"Medicine"}), Normalize([]string{"Medicine", "Biology"}))
		assert.Equal(t, Normalize([]string{"Basket Weaving"}), Normalize([]string{"Basket Weaving", "Medicine"}))
	})

	t.Run("order of the first element decides", func(t *testing.T) {
		assert.Equal(t, "Medicine", Normalize([]string{"Medicine", "Biology"}))
		assert.Equal(t, "Biology", Normalize([]string{"Biology", "Medicine"}))
	})
}

func TestNormalizeDeterminism(t *testing.T) {
	input := []string{"Quantum Physics", "Mathematics"}
	first := Normalize(input)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Normalize(input))
	}
	assert.Equal(t, "Physics", first)
}

func TestCategories(t *testing.T) {
	cats := Categories()
	assert.Contains(t, cats, "Medicine")
	assert.Contains(t, cats, "History")
	assert.NotContains(t, cats, "Other")
	// Medicine precedes Biology: taxonomy order is match order.
	assert.Equal(t, "Medicine", cats[0])
}
