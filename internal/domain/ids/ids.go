package ids

import (
	"crypto/rand"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
)

var ulidRegex = regexp.MustCompile(`(?i)^[0-9A-HJKMNP-TV-Z]{26}$`)

// NewULID generates a new ULID string. ULIDs sort lexically by creation
// time, which gives audit records a deterministic tie-break within equal
// timestamps.
func NewULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IsULID reports whether s looks like a ULID.
func IsULID(s string) bool {
	return ulidRegex.MatchString(s)
}
