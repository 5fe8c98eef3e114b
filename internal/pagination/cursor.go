// Package pagination implements the opaque keyset cursors used by the
// transaction list endpoints. Pages run newest-first; a cursor marks the
// (createdAt, id) position of the last row served, and the next page
// returns rows strictly older than it. Keyset paging stays stable while
// new transactions are being created, which offset paging does not.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCursor is returned for cursors that did not come from Encode.
var ErrInvalidCursor = errors.New("pagination: invalid cursor")

// Cursor is a decoded position in a result set ordered by
// (created_at DESC, id DESC).
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Contains reports whether a row at (createdAt, id) belongs to the page
// after this cursor, i.e. is strictly older. A nil cursor admits
// everything (first page).
func (c *Cursor) Contains(createdAt time.Time, id string) bool {
	if c == nil {
		return true
	}
	if createdAt.Equal(c.CreatedAt) {
		return id < c.ID
	}
	return createdAt.Before(c.CreatedAt)
}

// Encode renders a position as an opaque URL-safe token.
func Encode(createdAt time.Time, id string) string {
	raw := strconv.FormatInt(createdAt.UnixNano(), 10) + "|" + id
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a token produced by Encode. An empty token means the
// first page and decodes to nil.
func Decode(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	nanosPart, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	nanos, err := strconv.ParseInt(nanosPart, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp", ErrInvalidCursor)
	}
	return &Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: id}, nil
}

// ComputePage trims a slice fetched with limit+1 rows down to the page
// and derives the next-page token. key extracts (createdAt, id) from a
// row. An empty token means the listing is exhausted.
func ComputePage[T any](rows []T, limit int, key func(T) (time.Time, string)) (page []T, next string, hasMore bool) {
	if len(rows) <= limit {
		return rows, "", false
	}
	page = rows[:limit]
	createdAt, id := key(page[len(page)-1])
	return page, Encode(createdAt, id), true
}
