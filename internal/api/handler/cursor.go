package handler

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cuongbtq/quantum-imaging/internal/worker/storage"
)

func DecodeJobCursor(cursorStr string) (*storage.JobCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	decodedParts := strings.Split(string(decoded), "|")
	if len(decodedParts) != 2 || decodedParts[1] == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var seq uint64
	if _, err := fmt.Sscanf(decodedParts[0], "%d", &seq); err != nil {
		return nil, fmt.Errorf("invalid sequence in cursor: %w", err)
	}

	return &storage.JobCursor{
		Seq:   seq,
		JobID: decodedParts[1],
	}, nil
}

func EncodeJobCursor(cursor *storage.JobCursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.Seq, cursor.JobID)
	return base64.StdEncoding.EncodeToString([]byte(cs))
}
