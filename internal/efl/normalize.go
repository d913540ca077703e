package efl

import "strings"

var textReplacer = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\uFEFF", "",
	" ", " ",
	"–", "-",
	"—", "-",
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
)

// NormalizeText canonicalizes extracted disclosure text so the clause
// matchers see one predictable form: unix newlines, ascii punctuation, and
// single spaces inside each line. Layout columns survive as single spaces,
// which is all the anchored patterns rely on.
func NormalizeText(text string) string {
	text = textReplacer.Replace(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
