package models

import (
	"strings"
	"unicode/utf8"
)

// MaxFieldLength is the longest identifier, node name, handle or principal
// the stores accept, in characters.
const MaxFieldLength = 255

// ValidText reports whether s is valid UTF-8 free of NUL characters, which
// PostgreSQL text columns reject.
func ValidText(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}

// ValidData reports whether every key and string value in v, at any depth,
// is ValidText.
func ValidData(v any) bool {
	switch value := v.(type) {
	case string:
		return ValidText(value)
	case map[string]any:
		for key, item := range value {
			if !ValidText(key) || !ValidData(item) {
				return false
			}
		}
	case []any:
		for _, item := range value {
			if !ValidData(item) {
				return false
			}
		}
	}

	return true
}
