package render

import (
	"fmt"
	"io"
	"iter"
	"strings"
)

// Wrapper breaks text into lines no wider than Width-1 columns. EOL is the
// line separator left in the text by transliteration; it forces a break.
type Wrapper struct {
	Width int
	EOL   byte
}

// Lines wraps text for a screen width columns wide using '\n' as separator.
func Lines(text string, width int) iter.Seq[string] {
	return Wrapper{Width: width, EOL: '\n'}.Lines(text)
}

// Lines yields wrapped lines lazily. A word that does not fit on an empty
// line is yielded on its own, unsplit. Trailing blanks are dropped.
func (w Wrapper) Lines(text string) iter.Seq[string] {
	limit := w.Width - 1
	if w.Width < 2 {
		limit = len(text) + 1
	}

	return func(yield func(string) bool) {
		var (
			line    []byte
			hasWord bool
		)

		emit := func() bool {
			s := strings.TrimRight(string(line), " \t\r\v\f")
			line = line[:0]
			hasWord = false
			return yield(s)
		}

		i := 0
		for i < len(text) {
			start := i
			for i < len(text) && !w.isSpace(text[i]) {
				i++
			}
			word := text[start:i]

			if len(word) > 0 && len(line)+len(word) >= limit {
				if hasWord {
					if !emit() {
						return
					}
				} else {
					line = line[:0]
				}
			}
			if len(word) > 0 {
				line = append(line, word...)
				hasWord = true
			}

			for i < len(text) && w.isSpace(text[i]) {
				if text[i] == w.EOL || text[i] == '\n' {
					if !emit() {
						return
					}
				} else {
					line = append(line, text[i])
				}
				i++
			}
		}

		if hasWord {
			emit()
		}
	}
}

func (w Wrapper) isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return c == w.EOL
}

// Display is a fixed-width character sink that can hold output until the
// reader acknowledges a full screen.
type Display interface {
	io.Writer
	Pause() error
}

// Pager writes wrapped lines to a Display, asking it to pause after every
// Height lines when more output follows.
type Pager struct {
	Wrapper
	Height int
	Out    Display
}

func (p *Pager) Render(text string) error {
	shown := 0
	for line := range p.Lines(text) {
		if p.Height > 0 && shown == p.Height {
			if err := p.Out.Pause(); err != nil {
				return fmt.Errorf("pause display: %w", err)
			}
			shown = 0
		}
		if _, err := fmt.Fprintln(p.Out, line); err != nil {
			return fmt.Errorf("write display: %w", err)
		}
		shown++
	}
	return nil
}
