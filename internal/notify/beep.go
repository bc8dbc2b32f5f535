// Package notify plays the chime that announces a finished reply.
package notify

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

var (
	mu       sync.Mutex
	initRate beep.SampleRate
)

// Chime plays the mp3 at path and blocks until it has finished.
func Chime(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open chime: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("decode chime: %w", err)
	}
	defer streamer.Close()

	if err := initSpeaker(format.SampleRate); err != nil {
		return err
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))
	<-done

	return nil
}

func initSpeaker(rate beep.SampleRate) error {
	mu.Lock()
	defer mu.Unlock()

	if initRate == rate {
		return nil
	}
	if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	initRate = rate
	return nil
}

// Chimer adapts Chime to the reply hook of the console. An empty path
// disables it.
type Chimer string

func (c Chimer) Notify() error {
	if c == "" {
		return nil
	}
	return Chime(string(c))
}
