package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitsForMonthDay(t *testing.T) {
	t.Run("one unit per year", func(t *testing.T) {
		units, err := UnitsForMonthDay("01-15", 2020, 2023)
		require.NoError(t, err)
		require.Len(t, units, 4)

		assert.Equal(t, "2020-01-15", units[0].Date)
		assert.Equal(t, "2023-01-15", units[3].Date)
		for _, u := range units {
			assert.Equal(t, ModeDate, u.Mode)
		}
	})

	t.Run("skips Feb 29 outside leap years", func(t *testing.T) {
		units, err := UnitsForMonthDay("02-29", 2019, 2022)
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Equal(t, "2020-02-29", units[0].Date)
	})

	t.Run("rejects invalid month-day", func(t *testing.T) {
		_, err := UnitsForMonthDay("02-30", 2020, 2021)
		assert.Error(t, err)

		_, err = UnitsForMonthDay("13-01", 2020, 2021)
		assert.Error(t, err)

		_, err = UnitsForMonthDay("jan-15", 2020, 2021)
		assert.Error(t, err)
	})

	t.Run("rejects empty year range", func(t *testing.T) {
		_, err := UnitsForMonthDay("01-15", 2022, 2020)
		assert.Error(t, err)
	})
}

func TestAllMonthDays(t *testing.T) {
	days := AllMonthDays()

	require.Len(t, days, 366)
	assert.Equal(t, "01-01", days[0])
	assert.Equal(t, "12-31", days[365])
	assert.Contains(t, days, "02-29")
}

func TestShardUnits(t *testing.T) {
	units := ShardUnits([]string{
		"https://example.com/release/2025-01-01/papers-part0.jsonl.gz?sig=abc",
		"https://example.com/release/2025-01-01/papers-part1.jsonl.gz?sig=def",
	})

	require.Len(t, units, 2)
	assert.Equal(t, ModeBulk, units[0].Mode)
	assert.Equal(t, "papers-part0.jsonl.gz", units[0].Label())
	assert.Equal(t, "papers-part1.jsonl.gz", units[1].Label())
}

func TestWorkUnitLabel(t *testing.T) {
	assert.Equal(t, "2021-01-15", WorkUnit{Mode: ModeDate, Date: "2021-01-15"}.Label())
	assert.Equal(t, "2025-01-15", WorkUnit{Mode: ModeAnnual, Date: "2025-01-15"}.Label())

	// Shard labels drop the presigned query string.
	u := WorkUnit{Mode: ModeBulk, ShardURL: "https://host/path/shard-7.gz?token=secret"}
	assert.Equal(t, "shard-7.gz", u.Label())
}
