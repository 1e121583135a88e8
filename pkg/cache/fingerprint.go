// Package cache memoizes completed bulk queries by a content fingerprint of
// (resource name, request parameters). Entries have no TTL: a fingerprint
// identifies an idempotent query, so last-writer-wins refreshes are safe and
// staleness is the caller's call (see WithoutCache on the client).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint derives the deterministic cache key for a (resource, params)
// query. Params are serialized canonically before hashing: encoding/json
// emits map keys in sorted order, so insertion order can never change the
// fingerprint. A NUL byte separates the resource name from the payload so
// the two fields cannot bleed into each other.
func Fingerprint(resource string, params map[string]any) (string, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("serialize params for fingerprint: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(resource))
	h.Write([]byte{0})
	h.Write(payload)

	return hex.EncodeToString(h.Sum(nil)), nil
}
