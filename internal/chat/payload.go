package chat

import (
	"fmt"
	"strings"
)

// Escape prepares raw input for a JSON string literal: quotes, backslashes
// and forward slashes get a backslash, newlines and tabs become their escape
// sequences and other control bytes are dropped.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"', c == '\\', c == '/':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20:
			// dropped
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Request is one user turn ready for submission. Message is already escaped.
type Request struct {
	Token   string
	Message string
}

func (r Request) payload() []byte {
	return fmt.Appendf(nil, `{"token_id":"%s","message":"%s"}`, Escape(r.Token), r.Message)
}

// PollHandle tracks a submitted message until it completes.
type PollHandle struct {
	MessageID string
	Status    string
}

// Reply is the transliterated answer for one turn.
type Reply struct {
	Display string
	Speech  string
}

func newConversationPayload(token, marker string) []byte {
	return fmt.Appendf(nil, `{"token_id":"%s","new":"%s"}`, Escape(token), Escape(marker))
}
