package recipe

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// canonicalJSON renders a decoded recipe body into a stable byte
// form: JSON with recursively sorted object keys. Two bodies that
// are semantically identical always canonicalize to the same bytes
// regardless of key order in the source document.
func canonicalJSON(body map[string]any) ([]byte, error) {
	// json.Marshal emits map keys in sorted order at every level,
	// which is exactly the canonical form we need.
	return json.Marshal(stringifyKeys(body))
}

// hashBody returns the hex sha256 of the canonical form.
func hashBody(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// stringifyKeys rewrites any map[any]any produced by the YAML
// decoder into map[string]any so the body is marshalable as JSON.
func stringifyKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = stringifyKeys(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = stringifyKeys(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = stringifyKeys(item)
		}
		return out
	default:
		return v
	}
}
