package ids

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a canonical UUID string, used for rule and alert ids.
func New() string {
	return uuid.NewString()
}

// Short returns a 16-char hex id, the format producers use for event and
// session ids when they do not supply their own.
func Short() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
