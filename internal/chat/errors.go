package chat

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindTransport Kind = "TRANSPORT"
	KindParse     Kind = "PARSE"
	KindServer    Kind = "SERVER"
	KindTimeout   Kind = "TIMEOUT"
	KindStorage   Kind = "STORAGE"
)

var (
	ErrNoDisplayText = errors.New("no text to display")
	ErrNoSpeechText  = errors.New("no text to speak")
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("chat: %s %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("chat: %s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err is a chat error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}
