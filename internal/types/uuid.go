package types

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// UUID prefixes keep generated identifiers self-describing in logs and
// database dumps.
const (
	UUID_PREFIX_ASSIGNMENT    = "assign"
	UUID_PREFIX_OVERRIDE      = "ovr"
	UUID_PREFIX_WEBHOOK_EVENT = "wevt"
	UUID_PREFIX_USER          = "user"
	UUID_PREFIX_REQUEST       = "req"
)

// GenerateUUID returns a lowercase ULID.
func GenerateUUID() string {
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String())
}

// GenerateUUIDWithPrefix returns a prefixed lowercase ULID, e.g. "assign_01h...".
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return prefix + "_" + GenerateUUID()
}
