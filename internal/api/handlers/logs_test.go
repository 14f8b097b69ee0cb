package handlers

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogFilters(t *testing.T) {
	t.Run("maps query names onto filter fields", func(t *testing.T) {
		filters, err := parseLogFilters(url.Values{
			"type": {"create"},
			"user": {"01ARZ3NDEKTSV4RRFFQ69G5FAV"},
		})
		require.NoError(t, err)
		assert.Equal(t, "create", filters.Action)
		assert.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", filters.ActorID)
		assert.Nil(t, filters.Start)
		assert.Nil(t, filters.End)
	})

	t.Run("bare endDate covers the whole day", func(t *testing.T) {
		filters, err := parseLogFilters(url.Values{
			"startDate": {"2026-08-01"},
			"endDate":   {"2026-08-02"},
		})
		require.NoError(t, err)
		require.NotNil(t, filters.Start)
		require.NotNil(t, filters.End)
		assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), *filters.Start)
		assert.True(t, filters.End.After(time.Date(2026, 8, 2, 23, 59, 59, 0, time.UTC)))
	})

	t.Run("accepts RFC 3339 timestamps", func(t *testing.T) {
		filters, err := parseLogFilters(url.Values{
			"startDate": {"2026-08-01T09:30:00Z"},
		})
		require.NoError(t, err)
		require.NotNil(t, filters.Start)
		assert.Equal(t, time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC), *filters.Start)
	})

	t.Run("rejects garbage dates", func(t *testing.T) {
		_, err := parseLogFilters(url.Values{"startDate": {"yesterday"}})
		assert.Error(t, err)
	})

	t.Run("rejects inverted range", func(t *testing.T) {
		_, err := parseLogFilters(url.Values{
			"startDate": {"2026-08-02"},
			"endDate":   {"2026-08-01"},
		})
		assert.Error(t, err)
	})
}
