package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
}

func TestLimitWithBuffer(t *testing.T) {
	assert.Equal(t, DefaultLimit+1, LimitWithBuffer(0))
	assert.Equal(t, 11, LimitWithBuffer(10))
}

func TestCursorRoundTrip(t *testing.T) {
	original := Cursor{
		CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC),
		ID:        uuid.New(),
	}

	parsed, err := ParseCursor(EncodeCursor(original))
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.True(t, parsed.CreatedAt.Equal(original.CreatedAt))
	assert.Equal(t, original.ID, parsed.ID)
}

func TestParseCursorEmptyMeansFirstPage(t *testing.T) {
	parsed, err := ParseCursor("   ")
	require.NoError(t, err)
	assert.Nil(t, parsed)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"not base64":    "%%%",
		"no separator":  "bm8tc2VwYXJhdG9y",     // "no-separator"
		"bad timestamp": "bm90LWEtdGltZXwxMjM=", // "not-a-time|123"
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			parsed, err := ParseCursor(value)
			assert.Error(t, err)
			assert.Nil(t, parsed)
		})
	}
}
