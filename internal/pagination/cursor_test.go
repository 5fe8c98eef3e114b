package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ts := time.Date(2026, 2, 15, 10, 30, 0, 0, time.UTC)

	cursor, err := Decode(Encode(ts, "esc_abc123"))

	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, ts, cursor.CreatedAt)
	assert.Equal(t, "esc_abc123", cursor.ID)
}

func TestDecodeEmptyMeansFirstPage(t *testing.T) {
	cursor, err := Decode("")
	assert.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, token := range []string{
		"not-base64!!!",
		"bm9waXBl",         // decodes to "nopipe": no separator
		"YWJjfA==",         // "abc|": empty id
		"bm90YW51bWJlcnx4", // "notanumber|x"
	} {
		_, err := Decode(token)
		assert.ErrorIs(t, err, ErrInvalidCursor, "token %q", token)
	}
}

func TestCursorContains(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &Cursor{CreatedAt: at, ID: "esc_5"}

	assert.True(t, c.Contains(at.Add(-time.Second), "esc_9"), "strictly older row")
	assert.False(t, c.Contains(at.Add(time.Second), "esc_1"), "newer row")
	assert.True(t, c.Contains(at, "esc_4"), "same instant, smaller id breaks the tie")
	assert.False(t, c.Contains(at, "esc_5"), "the cursor row itself is excluded")

	var first *Cursor
	assert.True(t, first.Contains(at, "esc_5"), "nil cursor admits everything")
}

func TestComputePageLastPage(t *testing.T) {
	rows := []string{"a", "b", "c"}

	page, next, hasMore := ComputePage(rows, 5, func(s string) (time.Time, string) {
		return time.Now(), s
	})

	assert.Len(t, page, 3)
	assert.Empty(t, next)
	assert.False(t, hasMore)
}

func TestComputePageTrimsAndPointsAtLastRow(t *testing.T) {
	rows := []string{"a", "b", "c", "d"}
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	page, next, hasMore := ComputePage(rows, 3, func(s string) (time.Time, string) {
		return at, s
	})

	assert.Equal(t, []string{"a", "b", "c"}, page)
	assert.True(t, hasMore)

	cursor, err := Decode(next)
	require.NoError(t, err)
	assert.Equal(t, "c", cursor.ID)
}

func TestComputePageExactLimit(t *testing.T) {
	rows := []string{"a", "b", "c"}

	page, next, hasMore := ComputePage(rows, 3, func(s string) (time.Time, string) {
		return time.Now(), s
	})

	assert.Len(t, page, 3)
	assert.Empty(t, next)
	assert.False(t, hasMore)
}
