//go:build espeak

package tts

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <string.h>
#include <espeak-ng/speak_lib.h>

static int
espeak_open(const char *voice, int rate)
{
	if (espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0) < 0)
	{ return -1; }

	espeak_VOICE specs = { .languages = voice };
	espeak_SetVoiceByProperties(&specs);
	espeak_SetParameter(espeakRATE, rate, 0);

	return 0;
}

static int
espeak_say(const char *text)
{
	if (!text)
	{ return -1; }

	if (espeak_Synth(text, strlen(text) + 1, 0, POS_CHARACTER, 0, espeakCHARS_AUTO, NULL, NULL) != EE_OK)
	{ return -2; }

	return espeak_Synchronize() == EE_OK ? 0 : -3;
}

static void
espeak_close(void)
{
	espeak_Terminate();
}
*/
import "C"

import (
	"fmt"
	"io"
	"unsafe"
)

type espeakStream struct{}

// Open initialises espeak-ng for one utterance. Each Write is spoken
// synchronously.
func (e Espeak) Open() (io.WriteCloser, error) {
	cvoice := C.CString(e.voice())
	defer C.free(unsafe.Pointer(cvoice))

	if rc := C.espeak_open(cvoice, C.int(e.rate())); rc != 0 {
		return nil, fmt.Errorf("espeak init failed: %d", int(rc))
	}
	return espeakStream{}, nil
}

func (espeakStream) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	ctext := C.CString(string(p))
	defer C.free(unsafe.Pointer(ctext))

	if rc := C.espeak_say(ctext); rc != 0 {
		return 0, fmt.Errorf("espeak_say failed: %d", int(rc))
	}
	return len(p), nil
}

func (espeakStream) Close() error {
	C.espeak_close()
	return nil
}
