package format

import (
	"fmt"
	"strings"
)

// reserved maps LaTeX-reserved characters to their escaped forms.
// Backslash is handled separately because a backslash in free text may
// be deliberate markup.
var reserved = map[rune]string{
	'%': `\%`,
	'&': `\&`,
	'$': `\$`,
	'#': `\#`,
	'_': `\_`,
	'{': `\{`,
	'}': `\}`,
	'^': `\textasciicircum{}`,
	'~': `\textasciitilde{}`,
}

// EscapeText escapes LaTeX-reserved characters in a free-text string.
// Constructs that cannot be resolved mechanically (stray backslashes,
// unbalanced braces) are recorded as warnings instead of failing the
// stage; the model sees the escaped text and the caller sees the
// warnings.
func EscapeText(text string) (string, []string) {
	var warnings []string
	var b strings.Builder
	b.Grow(len(text))

	opens, closes := 0, 0
	for _, r := range text {
		switch r {
		case '{':
			opens++
		case '}':
			closes++
		}

		if r == '\\' {
			warnings = append(warnings,
				"backslash replaced with \\textbackslash{}; original may have been markup")
			b.WriteString(`\textbackslash{}`)
			continue
		}

		if escaped, ok := reserved[r]; ok {
			b.WriteString(escaped)
			continue
		}
		b.WriteRune(r)
	}

	if opens != closes {
		warnings = append(warnings,
			fmt.Sprintf("unbalanced braces in source text (%d open, %d close)", opens, closes))
	}

	return b.String(), warnings
}
