package db

import "encoding/json"

// encodeOptionArray serializes a string array as a compact JSON array,
// per spec §6's array-valued option encoding.
func encodeOptionArray(values []string) string {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		// []string always marshals cleanly; this is unreachable in practice.
		return "[]"
	}
	return string(b)
}

// decodeOptionArray deserializes a JSON string array. A malformed
// value yields an empty array rather than an error, per spec §6.
func decodeOptionArray(value string) []string {
	var values []string
	if err := json.Unmarshal([]byte(value), &values); err != nil {
		return []string{}
	}
	if values == nil {
		values = []string{}
	}
	return values
}
