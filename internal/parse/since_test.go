package parse_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gravedigger/internal/parse"
)

func TestNormalizeSinceEmpty(t *testing.T) {
	normalized, _, wasSet, err := parse.NormalizeSince("", time.Now())
	require.NoError(t, err)
	assert.False(t, wasSet)
	assert.Empty(t, normalized)
}

func TestNormalizeSinceRFC3339(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	normalized, cutoff, wasSet, err := parse.NormalizeSince("2024-03-01T00:00:00Z", now)
	require.NoError(t, err)
	assert.True(t, wasSet)
	assert.Equal(t, "2024-03-01T00:00:00Z", normalized)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), cutoff)
}

func TestNormalizeSinceDurations(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		input string
		want  time.Time
	}{
		{"72h", now.Add(-72 * time.Hour)},
		{"7d", now.Add(-7 * 24 * time.Hour)},
		{"2w", now.Add(-14 * 24 * time.Hour)},
		{"30s", now.Add(-30 * time.Second)},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			normalized, cutoff, wasSet, err := parse.NormalizeSince(tc.input, now)
			require.NoError(t, err)
			assert.True(t, wasSet)
			assert.Equal(t, tc.want, cutoff)
			assert.Equal(t, tc.want.Format(time.RFC3339), normalized)
		})
	}
}

func TestNormalizeSinceInvalid(t *testing.T) {
	_, _, wasSet, err := parse.NormalizeSince("yesterday", time.Now())
	assert.True(t, wasSet)
	assert.Error(t, err)
}
