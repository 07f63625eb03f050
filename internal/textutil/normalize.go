package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Normalize returns a canonical form of text for equality checks: NFKC,
// case folded, punctuation removed, whitespace collapsed.
func Normalize(text string) string {
	folded := folder.String(norm.NFKC.String(text))
	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			space = true
		}
	}
	return b.String()
}

// EqualFold reports whether a and b normalize to the same non-empty text.
func EqualFold(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}
