package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

type session struct {
	created time.Time
	msgs    []Message
}

func (s *session) lastActive() time.Time {
	if n := len(s.msgs); n > 0 {
		return s.msgs[n-1].Created
	}
	return s.created
}

// Memory keeps sessions in process memory. They are lost on restart.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*session
	nextID   int64
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*session), now: time.Now}
}

func (m *Memory) CreateToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[token]; ok {
		return fmt.Errorf("store: token %s already exists", token)
	}
	m.sessions[token] = &session{created: m.now()}
	return nil
}

func (m *Memory) DeleteToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *Memory) TokenExists(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[token]
	return ok, nil
}

func (m *Memory) AddMessage(_ context.Context, token string, role Role, content string, pending bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return 0, ErrNotFound
	}
	m.nextID++
	s.msgs = append(s.msgs, Message{
		ID:      m.nextID,
		Token:   token,
		Role:    role,
		Content: content,
		Pending: pending,
		Created: m.now(),
	})
	return m.nextID, nil
}

func (m *Memory) find(token string, id int64) (*Message, error) {
	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	for i := range s.msgs {
		if s.msgs[i].ID == id {
			return &s.msgs[i], nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) Message(_ context.Context, token string, id int64) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, err := m.find(token, id)
	if err != nil {
		return Message{}, err
	}
	return *msg, nil
}

func (m *Memory) CompleteMessage(_ context.Context, token string, id int64, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, err := m.find(token, id)
	if err != nil {
		return err
	}
	msg.Content = content
	msg.Pending = false
	return nil
}

func (m *Memory) History(_ context.Context, token string, exclude int64, limit int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	var out []Message
	for i := len(s.msgs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.msgs[i].ID != exclude {
			out = append(out, s.msgs[i])
		}
	}
	slices.Reverse(out)
	return out, nil
}

func (m *Memory) Prune(_ context.Context, token string, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return ErrNotFound
	}
	if excess := len(s.msgs) - keep; excess > 0 {
		s.msgs = append([]Message(nil), s.msgs[excess:]...)
	}
	return nil
}

func (m *Memory) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for token, s := range m.sessions {
		if s.lastActive().Before(cutoff) {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}
