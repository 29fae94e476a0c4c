package random

import (
	"math/rand/v2"
	"strings"
)

// CharsetKey avoids look-alike runes and the placeholder itself
const CharsetKey = "ABCDEFGHJKLMNPQRSTUVWYZ23456789"

// Placeholder marks the runes replaced by Template
const Placeholder = 'X'

// Template replaces every run of at least four placeholders in tmpl with random
// characters from options. Shorter runs are kept, so "RUST-MEK-1D-XXXX" becomes
// "RUST-MEK-1D-7KQ2" while the "X" in "APEX" survives.
func Template(r *rand.Rand, options string, tmpl string) (s string) {
	var b strings.Builder
	runes := []rune(tmpl)
	for index := 0; index < len(runes); {
		end := index
		for end < len(runes) && runes[end] == Placeholder {
			end++
		}
		if run := end - index; run >= 4 {
			b.WriteString(String(r, options, run))
			index = end
			continue
		}
		if end > index {
			b.WriteString(string(runes[index:end]))
			index = end
			continue
		}
		b.WriteRune(runes[index])
		index++
	}
	return b.String()
}
