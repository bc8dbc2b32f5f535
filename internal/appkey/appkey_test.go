package appkey

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestKeyString(t *testing.T) {
	require.Equal(t, "30220101", TokenKey.String())
}

func TestFileStore_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = s.Read(context.Background(), TokenKey)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Write(context.Background(), TokenKey, []byte("abc123")))
	got, err := s.Read(context.Background(), TokenKey)
	require.NoError(t, err)
	require.Equal(t, "abc123", string(got))

	_, err = os.Stat(filepath.Join(dir, "30220101.key"))
	require.NoError(t, err)
}

func TestFileStore_RejectsOversizedValue(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	err = s.Write(context.Background(), TokenKey, []byte(strings.Repeat("x", MaxSize+1)))
	require.ErrorContains(t, err, "max 64")
}

func TestNewFileStore_EmptyDir(t *testing.T) {
	_, err := NewFileStore("  ")
	require.Error(t, err)
}

type fakeRedis struct {
	vals   map[string][]byte
	getErr error
	setErr error
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.vals[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.vals[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	api := &fakeRedis{vals: map[string][]byte{}}
	s, err := NewRedisStore(api, "")
	require.NoError(t, err)

	_, err = s.Read(context.Background(), TokenKey)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Write(context.Background(), TokenKey, []byte("tok")))
	require.Contains(t, api.vals, "appkey:30220101")

	got, err := s.Read(context.Background(), TokenKey)
	require.NoError(t, err)
	require.Equal(t, "tok", string(got))
}

func TestRedisStore_Errors(t *testing.T) {
	_, err := NewRedisStore(nil, "x")
	require.Error(t, err)

	s, err := NewRedisStore(&fakeRedis{getErr: errors.New("conn refused"), setErr: errors.New("readonly")}, "x")
	require.NoError(t, err)

	_, err = s.Read(context.Background(), TokenKey)
	require.ErrorContains(t, err, "conn refused")
	require.NotErrorIs(t, err, ErrNotFound)

	require.ErrorContains(t, s.Write(context.Background(), TokenKey, []byte("t")), "readonly")
}

func TestSlot_TruncatesLongValues(t *testing.T) {
	long := strings.Repeat("a", MaxSize+10)
	api := &fakeRedis{vals: map[string][]byte{"appkey:30220101": []byte(long)}}
	s, err := NewRedisStore(api, "")
	require.NoError(t, err)

	tok, err := Slot{Store: s, Key: TokenKey}.LoadToken(context.Background())
	require.NoError(t, err)
	require.Len(t, tok, MaxSize)
}

func TestSlot_SaveToken(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	slot := Slot{Store: fs, Key: TokenKey}

	require.NoError(t, slot.SaveToken(context.Background(), "fresh"))
	tok, err := slot.LoadToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fresh", tok)

	_, err = Slot{}.LoadToken(context.Background())
	require.Error(t, err)
}
