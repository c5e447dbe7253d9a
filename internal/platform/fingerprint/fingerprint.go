// Package fingerprint produces deterministic content digests used to detect
// whether an upstream record changed since the last sync. The digest is a
// change-detection oracle, not a security primitive.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Compute canonicalizes v and returns a hex-encoded SHA-256 digest of the
// canonical form. Two values with field-for-field identical content produce
// the same digest regardless of key order; any field difference (including
// present vs. absent) produces a different digest.
func Compute(v interface{}) (string, error) {
	canonical, err := canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize round-trips v through JSON. encoding/json marshals map keys
// in sorted order, so the second marshal is key-order independent.
func canonicalize(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("normalize record: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("canonicalize record: %w", err)
	}
	return canonical, nil
}
