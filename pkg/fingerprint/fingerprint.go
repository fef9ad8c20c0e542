// Package fingerprint produces deterministic hashes of scraped listing
// payloads so re-scrapes carrying identical data can be detected cheaply.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Generate returns the SHA256 hex digest of the canonicalized payload.
// The same map always produces the same fingerprint regardless of key order.
func Generate(data map[string]any) string {
	hash := sha256.Sum256([]byte(canonicalize(data)))
	return hex.EncodeToString(hash[:])
}

// HasChanged compares two fingerprints.
func HasChanged(oldFingerprint, newFingerprint string) bool {
	return oldFingerprint != newFingerprint
}

// canonicalize builds a deterministic string form of a value: map keys are
// sorted, arrays keep their order, primitives use JSON encoding.
func canonicalize(data any) string {
	switch v := data.(type) {
	case map[string]any:
		return canonicalizeMap(v)
	case []any:
		return canonicalizeArray(v)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func canonicalizeMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := "{"
	for i, k := range keys {
		if i > 0 {
			result += ","
		}
		keyJSON, _ := json.Marshal(k)
		result += string(keyJSON) + ":" + canonicalize(m[k])
	}
	return result + "}"
}

func canonicalizeArray(arr []any) string {
	result := "["
	for i, v := range arr {
		if i > 0 {
			result += ","
		}
		result += canonicalize(v)
	}
	return result + "]"
}
