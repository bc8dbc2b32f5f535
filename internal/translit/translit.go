// Package translit folds proxy replies down to 7-bit text for the terminal and
// the speech device.
package translit

// Replacement for two-byte sequences missing from the table.
const Unknown = '_'

var letters = map[rune]byte{
	// Polish
	'ą': 'a', 'ć': 'c', 'ę': 'e', 'ł': 'l', 'ń': 'n', 'ó': 'o', 'ś': 's', 'ź': 'z', 'ż': 'z',
	// German
	'ä': 'a', 'ö': 'o', 'ü': 'u', 'ß': 's',
	// French
	'à': 'a', 'â': 'a', 'ç': 'c', 'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'î': 'i', 'ï': 'i', 'ô': 'o', 'ù': 'u', 'û': 'u',
	// Spanish
	'á': 'a', 'í': 'i', 'ñ': 'n', 'ú': 'u',
	// Italian
	'ì': 'i', 'ò': 'o',
}

// Table converts text using a fixed letter table and a line separator byte
// substituted for the two-character escape `\n`.
type Table struct {
	EOL byte
}

// Default separates lines with '\n'.
var Default = Table{EOL: '\n'}

// Transliterate runs Default over text.
func Transliterate(text string) string {
	return Default.Transliterate(text)
}

// Transliterate is idempotent and never grows its input. Letters are folded
// before escapes are resolved, so an escape formed by a folded letter ("\ñ")
// becomes a separator on the first pass rather than the second.
func (t Table) Transliterate(text string) string {
	return unescape(fold(text), t.separator())
}

// separator falls back to '\n' for bytes that would be rewritten again on a
// later pass.
func (t Table) separator() byte {
	switch {
	case t.EOL == 0, t.EOL == '\\', t.EOL == 'n':
		return '\n'
	case t.EOL >= 0xC0 && t.EOL <= 0xDF:
		return '\n'
	}
	return t.EOL
}

// Letter reports the ASCII replacement for r, or Unknown.
func Letter(r rune) byte {
	if b, ok := letters[r]; ok {
		return b
	}
	return Unknown
}

func fold(text string) []byte {
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c >= 0xC0 && c <= 0xDF && i+1 < len(text) {
			r := rune(c&0x1F)<<6 | rune(text[i+1]&0x3F)
			out = append(out, Letter(r))
			i++
			continue
		}
		out = append(out, c)
	}
	return out
}

func unescape(b []byte, eol byte) string {
	out := b[:0]
	for i := 0; i < len(b); i++ {
		if b[i] == '\\' && i+1 < len(b) && b[i+1] == 'n' {
			out = append(out, eol)
			i++
			continue
		}
		out = append(out, b[i])
	}
	return string(out)
}
