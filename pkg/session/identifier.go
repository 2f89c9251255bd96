package session

import (
	cryptorand "crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

var threadNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9\-]`)
var ulidEntropy = ulid.Monotonic(cryptorand.Reader, 0)

// GenerateClientID returns a unique identifier for one inbox client
// run, used to name log files and stamp notifications. The base name
// (usually the workflow or operator name) is sanitized and suffixed
// with a sortable ULID.
func GenerateClientID(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "inbox"
	}
	base = strings.ToLower(strings.ReplaceAll(base, " ", "-"))
	base = threadNameSanitizer.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "inbox"
	}

	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
	return fmt.Sprintf("%s-%s", base, strings.ToLower(id))
}
