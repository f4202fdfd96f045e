// Package checksum computes content digests for vault assets.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/karta-graph/karta/internal/models"
)

// AttrName is the node attribute under which an asset's content digest
// is stored.
const AttrName = "sha256"

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Attribute builds the digest attribute stamped on uploaded assets.
func Attribute(data []byte) models.Attribute {
	return models.Attribute{Name: AttrName, Value: models.StringValue(Sum(data))}
}
