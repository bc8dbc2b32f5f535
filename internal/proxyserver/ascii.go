package proxyserver

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxMessage = 2048
	MaxDisplay = 960
)

var asciiReplacer = strings.NewReplacer(
	"‘", "'",
	"’", "'",
	"“", "'",
	"”", "'",
	"–", "--",
	"—", "---",
	"•", "*",
	"·", "*",
	"…", "...",
	`"`, "'",
	`\`, "/",
	"\t", " ",
	"\r\n", "\n",
)

// Fold reduces model output to what the client can show: typographic
// punctuation becomes plain ASCII, double quotes become single quotes and
// backslashes become slashes. Printable ASCII, newlines and two-byte UTF-8
// letters (which the client transliterates) are kept; everything else is
// dropped.
func Fold(s string) string {
	s = asciiReplacer.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n', r >= 0x20 && r < 0x7F:
			b.WriteRune(r)
		case r >= 0xC0 && r < 0x800 && unicode.IsLetter(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// capDisplay cuts s so that its JSON form (newlines as \n) stays within
// MaxDisplay bytes, never splitting a UTF-8 sequence.
func capDisplay(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		w := 1
		if s[i] == '\n' {
			w = 2
		}
		if n+w > MaxDisplay {
			for i > 0 && !utf8.RuneStart(s[i]) {
				i--
			}
			return s[:i]
		}
		n += w
	}
	return s
}

var (
	blankRuns   = regexp.MustCompile(` {2,}`)
	newlineRuns = regexp.MustCompile(`\r?\n(\r?\n)+`)
	disallowed  = regexp.MustCompile(`[^\r\n\x20-\x7E]`)
)

// CleanMessage drops control and non-ASCII characters other than line
// breaks from user input, collapses runs of blanks and blank lines, trims it
// and caps the result at MaxMessage bytes. Tabs count as blanks.
func CleanMessage(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	s = disallowed.ReplaceAllString(s, "")
	s = blankRuns.ReplaceAllString(s, " ")
	s = newlineRuns.ReplaceAllString(s, "\n")
	s = strings.TrimSpace(s)
	if len(s) > MaxMessage {
		s = s[:MaxMessage]
	}
	return s
}
