package embed

import (
	"strings"
	"unicode"
)

// Tokens represents a slice of strings
type Tokens []string

// Tokenize lowercases the text and splits it on anything that is not a
// letter or digit, dropping empty tokens.
func Tokenize(s string) Tokens {
	var tokens Tokens
	for _, field := range strings.FieldsFunc(strings.ToLower(s), notAlnum) {
		if field != "" {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

func notAlnum(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
