package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisAPI is the part of *redis.Client the store needs.
type redisAPI interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// Redis keeps sessions in Redis. Every key of a session expires after the
// retention period without activity, so Sweep has nothing to do.
type Redis struct {
	api       redisAPI
	prefix    string
	retention time.Duration
	now       func() time.Time
}

func NewRedis(api redisAPI, prefix string, retention time.Duration) (*Redis, error) {
	if api == nil {
		return nil, errors.New("store: redis client must not be nil")
	}
	if retention <= 0 {
		return nil, fmt.Errorf("store: retention must be positive, got %s", retention)
	}
	if prefix == "" {
		prefix = "aisam"
	}
	return &Redis{api: api, prefix: prefix, retention: retention, now: time.Now}, nil
}

func (r *Redis) tokenKey(token string) string { return r.prefix + ":token:" + token }
func (r *Redis) listKey(token string) string  { return r.prefix + ":msgs:" + token }
func (r *Redis) msgKey(id int64) string       { return r.prefix + ":msg:" + strconv.FormatInt(id, 10) }

func (r *Redis) CreateToken(ctx context.Context, token string) error {
	if err := r.api.Set(ctx, r.tokenKey(token), r.now().Unix(), r.retention).Err(); err != nil {
		return fmt.Errorf("store: create token: %w", err)
	}
	return nil
}

func (r *Redis) DeleteToken(ctx context.Context, token string) error {
	ids, err := r.api.LRange(ctx, r.listKey(token), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("store: list messages: %w", err)
	}
	keys := []string{r.tokenKey(token), r.listKey(token)}
	for _, id := range ids {
		keys = append(keys, r.prefix+":msg:"+id)
	}
	if err := r.api.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("store: delete token: %w", err)
	}
	return nil
}

func (r *Redis) TokenExists(ctx context.Context, token string) (bool, error) {
	n, err := r.api.Exists(ctx, r.tokenKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("store: token exists: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) AddMessage(ctx context.Context, token string, role Role, content string, pending bool) (int64, error) {
	ok, err := r.TokenExists(ctx, token)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotFound
	}

	id, err := r.api.Incr(ctx, r.prefix+":seq").Result()
	if err != nil {
		return 0, fmt.Errorf("store: next message id: %w", err)
	}

	key := r.msgKey(id)
	if err := r.api.HSet(ctx, key,
		"token", token,
		"role", string(role),
		"content", content,
		"pending", strconv.FormatBool(pending),
		"created", strconv.FormatInt(r.now().UnixNano(), 10),
	).Err(); err != nil {
		return 0, fmt.Errorf("store: save message: %w", err)
	}
	if err := r.api.RPush(ctx, r.listKey(token), id).Err(); err != nil {
		return 0, fmt.Errorf("store: append message: %w", err)
	}

	for _, k := range []string{key, r.listKey(token), r.tokenKey(token)} {
		if err := r.api.Expire(ctx, k, r.retention).Err(); err != nil {
			return 0, fmt.Errorf("store: refresh expiry: %w", err)
		}
	}
	return id, nil
}

func (r *Redis) load(ctx context.Context, id int64) (Message, error) {
	h, err := r.api.HGetAll(ctx, r.msgKey(id)).Result()
	if err != nil {
		return Message{}, fmt.Errorf("store: load message %d: %w", id, err)
	}
	if len(h) == 0 {
		return Message{}, ErrNotFound
	}

	pending, _ := strconv.ParseBool(h["pending"])
	created, _ := strconv.ParseInt(h["created"], 10, 64)
	return Message{
		ID:      id,
		Token:   h["token"],
		Role:    Role(h["role"]),
		Content: h["content"],
		Pending: pending,
		Created: time.Unix(0, created),
	}, nil
}

func (r *Redis) Message(ctx context.Context, token string, id int64) (Message, error) {
	msg, err := r.load(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if msg.Token != token {
		return Message{}, ErrNotFound
	}
	return msg, nil
}

func (r *Redis) CompleteMessage(ctx context.Context, token string, id int64, content string) error {
	if _, err := r.Message(ctx, token, id); err != nil {
		return err
	}
	if err := r.api.HSet(ctx, r.msgKey(id), "content", content, "pending", "false").Err(); err != nil {
		return fmt.Errorf("store: complete message %d: %w", id, err)
	}
	return nil
}

func (r *Redis) ids(ctx context.Context, token string) ([]int64, error) {
	raw, err := r.api.LRange(ctx, r.listKey(token), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("store: bad message id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Redis) History(ctx context.Context, token string, exclude int64, limit int) ([]Message, error) {
	ids, err := r.ids(ctx, token)
	if err != nil {
		return nil, err
	}

	var out []Message
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		if ids[i] == exclude {
			continue
		}
		msg, err := r.load(ctx, ids[i])
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	slices.Reverse(out)
	return out, nil
}

func (r *Redis) Prune(ctx context.Context, token string, keep int) error {
	ids, err := r.ids(ctx, token)
	if err != nil {
		return err
	}
	excess := len(ids) - keep
	if excess <= 0 {
		return nil
	}

	keys := make([]string, 0, excess)
	for _, id := range ids[:excess] {
		keys = append(keys, r.msgKey(id))
	}
	if err := r.api.LTrim(ctx, r.listKey(token), int64(excess), -1).Err(); err != nil {
		return fmt.Errorf("store: trim messages: %w", err)
	}
	if err := r.api.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("store: delete old messages: %w", err)
	}
	return nil
}

func (r *Redis) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
