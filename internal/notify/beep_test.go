package notify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChime_MissingFile(t *testing.T) {
	err := Chime(filepath.Join(t.TempDir(), "beep.mp3"))
	require.ErrorContains(t, err, "open chime")
}

func TestChime_NotAnMP3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beep.mp3")
	require.NoError(t, os.WriteFile(path, []byte("definitely not audio"), 0o600))

	err := Chime(path)
	require.ErrorContains(t, err, "decode chime")
}

func TestChimer_EmptyIsSilent(t *testing.T) {
	require.NoError(t, Chimer("").Notify())
}
