package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewEntityID returns a master-entity identifier of the form "E" plus eight
// uppercase hex characters, the stable key used across the hierarchy tables.
func NewEntityID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "E" + strings.ToUpper(raw[:8])
}

// NewExposureID returns the identifier used for exposure rows.
func NewExposureID() string {
	return uuid.NewString()
}
