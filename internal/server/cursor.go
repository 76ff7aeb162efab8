package server

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// cursor is the decoded pagination position plus the filter context it was
// issued under. A cursor is only honored when the request's filters match.
type cursor struct {
	CreatedAt time.Time
	ID        string
	Search    string
	Status    string
	Sort      string
}

// encodeCursor packs the position and filter context into a URL-safe base64
// token. Format: createdAt|id|q|status|sort.
func encodeCursor(c cursor) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%s",
		c.CreatedAt.UTC().Format(time.RFC3339Nano), c.ID, c.Search, c.Status, c.Sort)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// decodeCursor unpacks a cursor token. Legacy two-part tokens and anything
// malformed decode to an error so the handler can reject with
// INVALID_CURSOR.
func decodeCursor(token string) (cursor, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return cursor{}, fmt.Errorf("bad encoding: %w", err)
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 5 {
		// Two-part cursors predate the filter context; treat as expired.
		return cursor{}, fmt.Errorf("unsupported cursor format (%d parts)", len(parts))
	}
	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return cursor{}, fmt.Errorf("bad timestamp: %w", err)
	}
	return cursor{
		CreatedAt: createdAt,
		ID:        parts[1],
		Search:    parts[2],
		Status:    parts[3],
		Sort:      parts[4],
	}, nil
}
