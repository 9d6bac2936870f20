package duckdb

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// CaseKey fingerprints a case by suite and normalized question so trends
// survive id changes and row reordering.
func CaseKey(suiteName, question string) string {
	payload := map[string]string{
		"suite":    strings.TrimSpace(suiteName),
		"question": strings.Join(strings.Fields(question), " "),
	}
	// Map keys are marshalled in sorted order.
	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// jsonList encodes a string list for a VARCHAR column; empty lists are NULL.
func jsonList(values []string) any {
	if len(values) == 0 {
		return nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return string(data)
}

// nullableString maps "" to NULL.
func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
