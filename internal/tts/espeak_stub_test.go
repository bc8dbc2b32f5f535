//go:build !espeak

package tts

import (
	"testing"

	"github.com/stretchr/testify/require"

	"aisam/internal/speech"
)

func TestEspeak_UnavailableWithoutTag(t *testing.T) {
	s := &speech.Speaker{Device: Espeak{}}
	require.ErrorIs(t, s.Speak("hi"), speech.ErrUnavailable)
}
