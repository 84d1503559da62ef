package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunIDContext(t *testing.T) {
	t.Run("stores and retrieves run ID", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithRunID(ctx, "run-123")

		result := RunIDFromContext(ctx)
		assert.Equal(t, "run-123", result)
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		ctx := context.Background()
		result := RunIDFromContext(ctx)
		assert.Equal(t, "", result)
	})
}

func TestUnitContext(t *testing.T) {
	t.Run("stores and retrieves unit and source", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithUnit(ctx, "2025-01-15", "semantic_scholar")

		unit, source := UnitFromContext(ctx)
		assert.Equal(t, "2025-01-15", unit)
		assert.Equal(t, "semantic_scholar", source)
	})

	t.Run("returns empty strings when not set", func(t *testing.T) {
		ctx := context.Background()
		unit, source := UnitFromContext(ctx)
		assert.Equal(t, "", unit)
		assert.Equal(t, "", source)
	})

	t.Run("handles partial values", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithUnit(ctx, "shard-003", "")

		unit, source := UnitFromContext(ctx)
		assert.Equal(t, "shard-003", unit)
		assert.Equal(t, "", source)
	})
}

func TestContextOverwrite(t *testing.T) {
	ctx := context.Background()
	ctx = WithRunID(ctx, "run-old")
	ctx = WithRunID(ctx, "run-new")

	assert.Equal(t, "run-new", RunIDFromContext(ctx))
}

func TestContextChaining(t *testing.T) {
	ctx := context.Background()
	ctx = WithRunID(ctx, "run-123")
	ctx = WithUnit(ctx, "2025-01-15", "semantic_scholar")

	assert.Equal(t, "run-123", RunIDFromContext(ctx))

	unit, source := UnitFromContext(ctx)
	assert.Equal(t, "2025-01-15", unit)
	assert.Equal(t, "semantic_scholar", source)
}
