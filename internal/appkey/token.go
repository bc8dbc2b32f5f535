package appkey

import (
	"context"
	"errors"
)

// Slot binds a Store to one key and treats its value as a string.
type Slot struct {
	Store Store
	Key   Key
}

// LoadToken returns the stored value, cut to MaxSize bytes.
func (s Slot) LoadToken(ctx context.Context) (string, error) {
	if s.Store == nil {
		return "", errors.New("appkey: store not configured")
	}
	data, err := s.Store.Read(ctx, s.Key)
	if err != nil {
		return "", err
	}
	if len(data) > MaxSize {
		data = data[:MaxSize]
	}
	return string(data), nil
}

func (s Slot) SaveToken(ctx context.Context, token string) error {
	if s.Store == nil {
		return errors.New("appkey: store not configured")
	}
	return s.Store.Write(ctx, s.Key, []byte(token))
}
