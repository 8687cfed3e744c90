package auditid

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"time"

	"github.com/google/uuid"
)

const layout = "20060102_150405"

var randReader io.Reader = rand.Reader

// New returns an id of the form YYYYMMDD_HHMMSS_<8 hex>. The suffix is the
// head of a random UUIDv4, so same-second ids collide only by chance.
func New(now time.Time) (string, error) {
	u, err := uuid.NewRandomFromReader(randReader)
	if err != nil {
		return "", err
	}
	return now.UTC().Format(layout) + "_" + hex.EncodeToString(u[:4]), nil
}
