// Package appkey persists small per-application values addressed by a
// creator/application/key triple.
package appkey

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxSize is the largest value a key holds.
const MaxSize = 64

var ErrNotFound = errors.New("appkey: not found")

type Key struct {
	Creator uint16
	App     uint8
	ID      uint8
}

// TokenKey holds the proxy session token.
var TokenKey = Key{Creator: 0x3022, App: 0x01, ID: 0x01}

func (k Key) String() string {
	return fmt.Sprintf("%04x%02x%02x", k.Creator, k.App, k.ID)
}

type Store interface {
	Read(ctx context.Context, k Key) ([]byte, error)
	Write(ctx context.Context, k Key, data []byte) error
}

// FileStore keeps one file per key in a directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("appkey: directory must not be empty")
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(k Key) string {
	return filepath.Join(s.dir, k.String()+".key")
}

func (s *FileStore) Read(_ context.Context, k Key) ([]byte, error) {
	data, err := os.ReadFile(s.path(k))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appkey: read %s: %w", k, err)
	}
	return data, nil
}

func (s *FileStore) Write(_ context.Context, k Key, data []byte) error {
	if len(data) > MaxSize {
		return fmt.Errorf("appkey: value for %s is %d bytes, max %d", k, len(data), MaxSize)
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("appkey: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, k.String()+".*.tmp")
	if err != nil {
		return fmt.Errorf("appkey: write %s: %w", k, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("appkey: write %s: %w", k, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("appkey: write %s: %w", k, err)
	}
	if err := os.Rename(tmp.Name(), s.path(k)); err != nil {
		return fmt.Errorf("appkey: write %s: %w", k, err)
	}
	return nil
}
