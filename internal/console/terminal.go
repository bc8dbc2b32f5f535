package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const (
	PausePrompt = "Press RETURN to continue..."

	ClearANSI    = "\x1b[H\x1b[2J"
	ClearATASCII = "\x7d"
)

// Terminal is the character screen and keyboard. It implements
// render.Display so replies can be paged.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

func (t *Terminal) Write(p []byte) (int, error) {
	return t.out.Write(p)
}

func (t *Terminal) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(t.out, format, args...)
}

// Pause waits for RETURN.
func (t *Terminal) Pause() error {
	t.Printf("\n%s\n", PausePrompt)
	_, err := t.ReadLine()
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// ReadLine returns the next input line without its terminator. A final line
// without a newline is returned before io.EOF.
func (t *Terminal) ReadLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}
