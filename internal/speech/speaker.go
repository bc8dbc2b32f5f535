package speech

import (
	"errors"
	"fmt"
	"io"
	log "log/slog"
)

var ErrUnavailable = errors.New("speech device unavailable")

// Device opens the synthesiser for one utterance. Every Write on the
// returned stream carries exactly one chunk.
type Device interface {
	Open() (io.WriteCloser, error)
}

type Speaker struct {
	Device   Device
	MaxChunk int
}

// Speak sends text to the device chunk by chunk. Failing to open the device
// is reported as ErrUnavailable so callers can switch speech off.
func (s *Speaker) Speak(text string) error {
	if s.Device == nil {
		return ErrUnavailable
	}

	w, err := s.Device.Open()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	n := 0
	for chunk := range Segments(text, s.MaxChunk) {
		if _, err := io.WriteString(w, chunk); err != nil {
			_ = w.Close()
			return fmt.Errorf("speak chunk %d: %w", n, err)
		}
		n++
	}
	log.Debug("Spoke", "chunks", n)

	return w.Close()
}
