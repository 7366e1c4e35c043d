package sanitize

import (
	"strings"
	"unicode/utf8"
)

// StripControls drops bytes that never belong in an attribution value:
// NUL, every ASCII control (tabs and newlines included, values are single line),
// DEL, C1 controls U+0080..U+009F and invalid UTF-8 bytes.
// Returns s unchanged when nothing needs cleaning.
func StripControls(s string) string {
	if s == "" {
		return s
	}

	n := len(s)
	i := 0

	// fast path: scan until the first byte or rune we would drop
	for i < n {
		b := s[i]
		if b < 0x20 || b == 0x7F {
			break
		}
		if b < 0x80 {
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if (r == utf8.RuneError && size == 1) || (r >= 0x80 && r <= 0x9F) {
			break
		}
		i += size
	}
	if i == n {
		return s
	}

	var bldr strings.Builder
	bldr.Grow(n)
	bldr.WriteString(s[:i])

	for i < n {
		c := s[i]
		if c < 0x20 || c == 0x7F {
			i++
			continue
		}
		if c < 0x80 {
			bldr.WriteByte(c)
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			i++
			continue
		}
		if r >= 0x80 && r <= 0x9F {
			i += size
			continue
		}
		bldr.WriteString(s[i : i+size])
		i += size
	}

	return bldr.String()
}
