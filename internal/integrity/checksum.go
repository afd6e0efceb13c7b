// Package integrity hashes graveyard content and metadata so that copies and
// the audit chain can be verified.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rip-project/rip/pkg/jsonutil"
	"github.com/rip-project/rip/pkg/model"
)

// CanonicalHash is the SHA-256 of v's canonical JSON encoding.
func CanonicalHash(v any) (model.HashValue, error) {
	data, err := jsonutil.CanonicalMarshal(v)
	if err != nil {
		return "", fmt.Errorf("canonical hash: %w", err)
	}
	sum := sha256.Sum256(data)
	return model.HashValue(hex.EncodeToString(sum[:])), nil
}
