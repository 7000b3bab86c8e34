package util

import (
	"sort"
	"unicode/utf8"

	"github.com/zeebo/xxh3"
	"golang.org/x/exp/maps"
)

// SortedKeys returns the keys of a map sorted alphabetically.
func SortedKeys[M ~map[string]V, V any](m M) []string {
	keys := maps.Keys(m)
	sort.Strings(keys)
	return keys
}

// IsText reports whether data decodes as UTF-8. The outcome decides which
// storage path a file takes: text content is delta-encoded, anything else
// is snapshotted as binary.
func IsText(data []byte) bool {
	return utf8.Valid(data)
}

// ContentEqual compares two contents by length and xxh3-128 digest.
// Timestamps are never consulted; this is the modification check.
func ContentEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return xxh3.Hash128(a) == xxh3.Hash128(b)
}
