// Package fingerprint derives deterministic cache keys for generated documents
// and defines the cache they are stored in.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/suPer8Hu/readmegen/internal/analysis"
)

const KeyPrefix = "readme:llm:"

// Key hashes the target reference together with a canonical serialization of
// the summary. Lists are sorted and maps serialize with sorted keys, so member
// order in s never affects the result.
func Key(targetReference string, s analysis.Summary) (string, error) {
	canonical, err := json.Marshal(s.Normalized())
	if err != nil {
		return "", errors.Wrap(err, "fingerprint: encode summary")
	}

	h := sha256.New()
	h.Write([]byte(targetReference))
	h.Write([]byte{0})
	h.Write(canonical)
	return KeyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}
