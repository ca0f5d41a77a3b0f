package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// CacheKey derives a content key for an enrichment request. Identical kind,
// input and rows always produce the same key; map keys are marshaled sorted so
// row field order does not matter.
func CacheKey(kind Kind, userInput string, rows []Record) (string, error) {
	b, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("marshal rows: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(userInput)))
	h.Write([]byte{0})
	h.Write(b)
	return string(kind) + ":" + hex.EncodeToString(h.Sum(nil)), nil
}
