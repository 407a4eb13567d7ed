package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/reachlabs/reach-be/internal/api/storage"
)

// DecodeActivityCursor parses a base64 "unixnano|activity_id" keyset cursor.
// An empty cursor means first page.
func DecodeActivityCursor(cursorStr string) (*storage.ActivityCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	if _, err := fmt.Sscanf(parts[0], "%d", &createdAt); err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &storage.ActivityCursor{
		CreatedAt:  time.Unix(0, createdAt),
		ActivityID: parts[1],
	}, nil
}

// EncodeActivityCursor renders a cursor for the last row of a page.
func EncodeActivityCursor(cursor *storage.ActivityCursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.ActivityID)
	return base64.StdEncoding.EncodeToString([]byte(cs))
}
