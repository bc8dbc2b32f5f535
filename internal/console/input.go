package console

import "strings"

const MaxInput = 1023

// Filter applies the line editor rules to a raw input line: only printable
// ASCII is kept, BS, DEL and '~' erase the previous character and
// the result is capped at MaxInput bytes.
func Filter(raw string) string {
	buf := make([]byte, 0, min(len(raw), MaxInput))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == 0x08 || c == 0x7F || c == '~':
			if len(buf) > 0 {
				buf = buf[:len(buf)-1]
			}
		case c >= 32 && c <= 126:
			if len(buf) < MaxInput {
				buf = append(buf, c)
			}
		}
	}
	return string(buf)
}

type Command int

const (
	Ask Command = iota
	Help
	Exit
	SpeakOn
	SpeakOff
	Clear
	New
)

var commands = map[string]Command{
	"help":     Help,
	"exit":     Exit,
	"speakon":  SpeakOn,
	"speakoff": SpeakOff,
	"cls":      Clear,
	"new":      New,
}

// Parse recognises a command word typed entirely in lower or upper case.
// Everything else is a question for the assistant.
func Parse(line string) Command {
	lower := strings.ToLower(line)
	if line != lower && line != strings.ToUpper(line) {
		return Ask
	}
	if c, ok := commands[lower]; ok {
		return c
	}
	return Ask
}
