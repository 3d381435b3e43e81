package views

import (
	"strings"
	"unicode/utf8"
)

// sanitizeForTerminal removes codepoints that break tcell/tview rendering or
// could drive the terminal:
// - C0/C1 control characters other than newline and tab (escape sequences)
// - Skin tone modifiers (U+1F3FB..U+1F3FF)
// - Zero Width Joiner (U+200D)
// - Variation Selectors (U+FE00..U+FE0F, U+E0100..U+E01EF)
// Invalid UTF-8 bytes are dropped.
func sanitizeForTerminal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r == utf8.RuneError && size == 1 {
			continue
		}
		if !isProblematicRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// singleLine sanitizes s and folds line breaks into spaces for table cells.
func singleLine(s string) string {
	s = sanitizeForTerminal(s)
	return strings.Join(strings.Fields(s), " ")
}

func isProblematicRune(r rune) bool {
	switch {
	case r == '\n' || r == '\t':
		return false
	case r < 0x20 || r == 0x7F:
		return true
	case r >= 0x80 && r <= 0x9F:
		return true
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return false
	}
}
