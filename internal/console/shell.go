// Package console is the interactive front end of the chat client: banner,
// prompt, command words and the messages shown around each turn.
package console

import (
	"context"
	"errors"
	"io"
	log "log/slog"

	"aisam/internal/chat"
	"aisam/internal/speech"
)

const (
	Greeting = "I AEM SAEM, YOR FOO-JEE-NET UH-SIS-TUHNT"

	helpText = ` HELP       Prints this message
 EXIT       Exit the program
 SPEAKOFF   Turn OFF SAM audio
 SPEAKON    Turn ON SAM audio
 CLS        Clear the screen
 NEW        Start new convo
`
)

type Conversation interface {
	Init(ctx context.Context) error
	Ask(ctx context.Context, input string) (chat.Turn, error)
	NewConversation(ctx context.Context) error
	SetSpeaking(on bool)
	Speaking() bool
}

type Voice interface {
	Speak(text string) error
}

// Notifier is told when a reply has been delivered.
type Notifier interface {
	Notify() error
}

type Shell struct {
	Term  *Terminal
	Conv  Conversation
	Voice Voice
	Bell  Notifier
	// ClearSeq clears the screen; ClearANSI when empty.
	ClearSeq string
}

// Run greets the user, opens the session and serves commands until EXIT,
// end of input or ctx is done. Only a failed session start is returned as
// an error.
func (s *Shell) Run(ctx context.Context) error {
	s.Term.Printf("         Welcome to AI SAM!\n")
	s.greet()

	if err := s.Conv.Init(ctx); err != nil {
		if !chat.IsKind(err, chat.KindStorage) {
			s.Term.Printf("\nErr: %s\n", describe(err))
			return err
		}
		s.Term.Printf("\nErr: Failed to save session key.\n")
		log.Warn("Session key not saved", "err", err)
	}

	s.Term.Printf("   Type HELP for a list of commands\n")
	s.Term.Printf("           Ask me anything...\n")

	for ctx.Err() == nil {
		s.Term.Printf("\n> ")
		raw, err := s.Term.ReadLine()
		if errors.Is(err, io.EOF) {
			s.Term.Printf("\n")
			return nil
		}
		if err != nil {
			return err
		}

		line := Filter(raw)
		if line == "" {
			continue
		}
		if !s.dispatch(ctx, line) {
			return nil
		}
	}
	return nil
}

// dispatch handles one input line and reports whether to keep going.
func (s *Shell) dispatch(ctx context.Context, line string) bool {
	switch Parse(line) {
	case Help:
		s.Term.Printf("%s", helpText)
	case Exit:
		s.Term.Printf("Goodbye!\n")
		return false
	case SpeakOn:
		s.Conv.SetSpeaking(true)
		if s.Conv.Speaking() {
			s.Term.Printf("Turned ON SAM audio output\n")
		} else {
			s.Term.Printf("No speech device configured\n")
		}
	case SpeakOff:
		s.Conv.SetSpeaking(false)
		s.Term.Printf("Turned OFF SAM audio output\n")
	case Clear:
		seq := s.ClearSeq
		if seq == "" {
			seq = ClearANSI
		}
		s.Term.Printf("%s", seq)
	case New:
		s.Term.Printf("Starting new session...")
		err := s.Conv.NewConversation(ctx)
		switch {
		case err == nil:
			s.Term.Printf("done!\n")
		case chat.IsKind(err, chat.KindStorage):
			s.Term.Printf("\nErr: Failed to save session key.\n")
		default:
			s.Term.Printf("\nErr: %s\n", describe(err))
		}
	default:
		s.ask(ctx, line)
	}
	return true
}

func (s *Shell) ask(ctx context.Context, line string) {
	s.Term.Printf("Thinking...\n")

	turn, err := s.Conv.Ask(ctx, line)
	for _, w := range turn.Warnings {
		s.warn(w)
	}
	if err != nil {
		log.Debug("Turn failed", "state", turn.State, "polls", turn.Polls, "err", err)
		s.Term.Printf("Err: %s\n", describe(err))
		return
	}

	log.Debug("Turn complete", "polls", turn.Polls)
	if s.Bell != nil {
		if err := s.Bell.Notify(); err != nil {
			log.Warn("Chime failed", "err", err)
		}
	}
}

func (s *Shell) greet() {
	if s.Voice == nil || !s.Conv.Speaking() {
		return
	}
	if err := s.Voice.Speak(Greeting); err != nil {
		s.warn(err)
		if errors.Is(err, speech.ErrUnavailable) {
			s.Conv.SetSpeaking(false)
		}
	}
}

func (s *Shell) warn(err error) {
	switch {
	case errors.Is(err, chat.ErrNoDisplayText):
		s.Term.Printf("Error: No text to display\n")
	case errors.Is(err, chat.ErrNoSpeechText):
		s.Term.Printf("Error: No text to speak\n")
	case errors.Is(err, speech.ErrUnavailable):
		s.Term.Printf("Unable to access the speech device\nTurning off speech.\n")
	case chat.IsKind(err, chat.KindStorage):
		s.Term.Printf("Err: Failed to save session key.\n")
	default:
		s.Term.Printf("Err: %v\n", err)
	}
	log.Debug("Turn warning", "err", err)
}

func describe(err error) string {
	var ce *chat.Error
	if !errors.As(err, &ce) {
		return err.Error()
	}
	switch ce.Kind {
	case chat.KindTimeout:
		return "Timed out waiting for a reply."
	case chat.KindServer:
		return ce.Err.Error()
	case chat.KindParse:
		return "Failed to parse JSON response."
	case chat.KindTransport:
		if errors.Is(err, context.Canceled) {
			return "Cancelled."
		}
		return "Network error: " + ce.Err.Error()
	default:
		return ce.Error()
	}
}
