package schema

import (
	"strings"
	"unicode"
)

// Rename policies accepted by the rename_all directive argument. Anything
// else is treated as identity.
const (
	PolicySnake          = "snake_case"
	PolicyCamel          = "camelCase"
	PolicyKebab          = "kebab-case"
	PolicyScreamingSnake = "SCREAMING_SNAKE_CASE"
)

// ApplyPolicy converts an identifier under the named case policy.
func ApplyPolicy(name, policy string) string {
	switch policy {
	case PolicySnake:
		return strings.Join(splitWords(name), "_")
	case PolicyKebab:
		return strings.Join(splitWords(name), "-")
	case PolicyScreamingSnake:
		return strings.ToUpper(strings.Join(splitWords(name), "_"))
	case PolicyCamel:
		words := splitWords(name)
		for i := 1; i < len(words); i++ {
			words[i] = capitalize(words[i])
		}
		return strings.Join(words, "")
	default:
		return name
	}
}

// FieldName runs the rename pipeline: explicit rename beats the container
// policy, which beats identity.
func FieldName(name, rename, policy string) string {
	if rename != "" {
		return rename
	}
	return ApplyPolicy(name, policy)
}

// splitWords lowercases an identifier and splits it on case boundaries and
// separators. Initialisms stay together: "HTTPStatus" yields ["http",
// "status"], "MemoID" yields ["memo", "id"].
func splitWords(name string) []string {
	var words []string
	var cur []rune
	runes := []rune(name)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = nil
		}
	}
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
		case unicode.IsUpper(r):
			prevLower := i > 0 && unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (nextLower && len(cur) > 0) {
				flush()
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
