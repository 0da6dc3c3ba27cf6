package textutil

import (
	"strings"
	"unicode/utf8"
)

// MaxAttributeValue bounds attribute values copied into logs.
const MaxAttributeValue = 256

// NormalizeAttributes trims message attribute keys and values and drops entries with
// empty keys. Keys matching one of known case-insensitively are rewritten to that
// spelling, so "CatalogID" and "catalogId" resolve to the same entry. Values longer
// than MaxAttributeValue runes are truncated.
func NormalizeAttributes(values map[string]string, known ...string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	canonical := make(map[string]string, len(known))
	for _, key := range known {
		canonical[strings.ToLower(key)] = key
	}

	result := make(map[string]string, len(values))
	for key, value := range values {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		exact := true
		if name, ok := canonical[strings.ToLower(trimmedKey)]; ok {
			exact = name == trimmedKey
			trimmedKey = name
		}
		if _, taken := result[trimmedKey]; taken && !exact {
			continue
		}
		result[trimmedKey] = truncateRunes(strings.TrimSpace(value), MaxAttributeValue)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}
