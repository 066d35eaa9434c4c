// Package plate canonicalizes recognized licence plate text into lookup keys.
package plate

import (
	"strings"
	"unicode"
)

// Normalize removes every whitespace rune (ASCII, ideographic and no-break
// spaces included, plus stray byte-order marks from OCR output) so that
// "12 가 3456" and "12가3456" map to the same key. It is idempotent.
func Normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\uFEFF' {
			return -1
		}
		return r
	}, raw)
}
