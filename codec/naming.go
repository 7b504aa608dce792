package codec

import (
	"strings"
	"unicode"
)

// KeyStrategy controls how struct field names map to payload keys.
type KeyStrategy int

const (
	// KeysAsIs uses the json tag name, or the Go field name when untagged.
	KeysAsIs KeyStrategy = iota
	// SnakeCase converts field names to snake_case ("CreatedAt" -> "created_at").
	SnakeCase
	// CamelCase converts field names to lowerCamelCase ("created_at" -> "createdAt").
	CamelCase
)

func (s KeyStrategy) String() string {
	switch s {
	case SnakeCase:
		return "snake_case"
	case CamelCase:
		return "camelCase"
	default:
		return "as_is"
	}
}

// Apply converts a field name according to the strategy. Map keys are never
// passed through Apply.
func (s KeyStrategy) Apply(name string) string {
	switch s {
	case SnakeCase:
		return toSnake(name)
	case CamelCase:
		return toCamel(name)
	default:
		return name
	}
}

func toSnake(name string) string {
	words := splitWords(name)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, "_")
}

func toCamel(name string) string {
	words := splitWords(name)
	var b strings.Builder
	for i, w := range words {
		lower := strings.ToLower(w)
		if i == 0 {
			b.WriteString(lower)
			continue
		}
		r := []rune(lower)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// splitWords breaks an identifier on separators and case changes, keeping
// acronyms together: "HTTPServerID" -> [HTTP Server ID].
func splitWords(name string) []string {
	runes := []rune(name)
	var words []string
	start := -1

	flush := func(end int) {
		if start >= 0 && end > start {
			words = append(words, string(runes[start:end]))
		}
		start = -1
	}

	for i, r := range runes {
		if r == '_' || r == '-' || r == ' ' || r == '.' {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		prev := runes[i-1]
		switch {
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			flush(i)
			start = i
		case unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
			flush(i)
			start = i
		}
	}
	flush(len(runes))
	return words
}
