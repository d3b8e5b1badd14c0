package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/jschwabe/autoenroll/internal/api/storage"
)

// DecodeEnrollmentCursor parses an opaque list cursor. An empty string
// means "first page" and decodes to nil.
func DecodeEnrollmentCursor(cursorStr string) (*storage.EnrollmentCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	decodedParts := strings.Split(string(decoded), "|")
	if len(decodedParts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	_, err = fmt.Sscanf(decodedParts[0], "%d", &createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &storage.EnrollmentCursor{
		CreatedAt: time.Unix(0, createdAt),
		JobID:     decodedParts[1],
	}, nil
}

func EncodeEnrollmentCursor(cursor *storage.EnrollmentCursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.JobID)
	return base64.StdEncoding.EncodeToString([]byte(cs))
}
