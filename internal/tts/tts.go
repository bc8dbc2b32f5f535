// Package tts provides the speech devices a speech.Speaker writes to.
package tts

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"os"
	"strings"
)

const (
	DefaultVoice = "en-us"
	DefaultRate  = 140
)

// Espeak speaks through libespeak-ng. Without the espeak build tag Open
// always fails, which callers treat as an unavailable device.
type Espeak struct {
	Voice string
	Rate  int
}

func (e Espeak) voice() string {
	if e.Voice == "" {
		return DefaultVoice
	}
	return e.Voice
}

func (e Espeak) rate() int {
	if e.Rate <= 0 {
		return DefaultRate
	}
	return e.Rate
}

// File writes each chunk as one line to a device node, FIFO or plain file,
// opened afresh for every utterance. A synthesiser process reading the other
// end does the speaking.
type File struct {
	Path string
}

func (f File) Open() (io.WriteCloser, error) {
	if f.Path == "" {
		return nil, errors.New("no speech device configured")
	}

	fh, err := os.OpenFile(f.Path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return nil, fmt.Errorf("open speech device: %w", err)
	}
	log.Debug("Opened speech device", "path", f.Path)

	return &lineWriter{f: fh, w: bufio.NewWriter(fh)}, nil
}

type lineWriter struct {
	f *os.File
	w *bufio.Writer
}

func (l *lineWriter) Write(p []byte) (int, error) {
	chunk := strings.TrimRight(string(p), "\n")
	if _, err := l.w.WriteString(chunk); err != nil {
		return 0, err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return 0, err
	}
	if err := l.w.Flush(); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (l *lineWriter) Close() error {
	return errors.Join(l.w.Flush(), l.f.Close())
}

// Open picks a device from a speech target: "espeak" or "espeak:<voice>"
// selects the built-in synthesiser, anything else is a device path.
func Open(target string) (Device, error) {
	switch {
	case target == "":
		return nil, errors.New("no speech device configured")
	case target == "espeak":
		return Espeak{}, nil
	case strings.HasPrefix(target, "espeak:"):
		return Espeak{Voice: strings.TrimPrefix(target, "espeak:")}, nil
	default:
		return File{Path: target}, nil
	}
}

// Device matches speech.Device.
type Device interface {
	Open() (io.WriteCloser, error)
}
