// Package store keeps proxy sessions: the tokens handed to clients and the
// recent messages of each conversation.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	ID      int64
	Token   string
	Role    Role
	Content string
	Pending bool
	Created time.Time
}

type Store interface {
	CreateToken(ctx context.Context, token string) error
	// DeleteToken removes the token and every message it owns.
	DeleteToken(ctx context.Context, token string) error
	TokenExists(ctx context.Context, token string) (bool, error)

	AddMessage(ctx context.Context, token string, role Role, content string, pending bool) (int64, error)
	// Message returns id only if it belongs to token.
	Message(ctx context.Context, token string, id int64) (Message, error)
	CompleteMessage(ctx context.Context, token string, id int64, content string) error
	// History returns up to limit of the token's latest messages other than
	// exclude, oldest first.
	History(ctx context.Context, token string, exclude int64, limit int) ([]Message, error)
	// Prune drops all but the keep most recent messages of token.
	Prune(ctx context.Context, token string, keep int) error

	// Sweep removes tokens whose last activity is before cutoff and reports
	// how many went.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// NewToken returns a random token of 32 hex digits.
func NewToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}
