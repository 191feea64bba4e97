package core

import (
	"strings"

	"github.com/google/uuid"
)

// TempIDPrefix marks ids of optimistic, unconfirmed messages.
const TempIDPrefix = "temp_"

const (
	displayLengthSmall  = 4
	displayLengthMedium = 5
	displayLengthLarge  = 6
)

// NewTempID creates a fresh temporary id for an optimistic message.
func NewTempID() string {
	return TempIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsTempID reports whether id was produced by NewTempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// GetDisplayPrefixLength returns the short id length for display.
func GetDisplayPrefixLength(messageCount int) int {
	if messageCount < 500 {
		return displayLengthSmall
	}
	if messageCount < 1500 {
		return displayLengthMedium
	}
	return displayLengthLarge
}

// ShortID extracts the shortened id used in the UI.
func ShortID(id string, length int) string {
	base := strings.TrimPrefix(id, TempIDPrefix)
	if length <= 0 {
		return ""
	}
	if length > len(base) {
		length = len(base)
	}
	return base[:length]
}
