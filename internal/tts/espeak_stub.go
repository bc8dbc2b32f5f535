//go:build !espeak

package tts

import (
	"errors"
	"io"
)

var errNoEspeak = errors.New("built without espeak support (use -tags espeak)")

func (Espeak) Open() (io.WriteCloser, error) {
	return nil, errNoEspeak
}
