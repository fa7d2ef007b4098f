package message

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a time-ordered trace identifier without dashes.
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return strings.ReplaceAll(id.String(), "-", ""), nil
}
