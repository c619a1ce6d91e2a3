package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrInvalidSessionID is returned when a Redis storage is bound to a malformed session id.
var ErrInvalidSessionID = errors.New("invalid session id")

// RedisStorage keeps durable entries server-side. The browser only holds the session id.
//
// Keys are laid out as <prefix>:<sid>:<entry>.
type RedisStorage struct {
	redis  redis.UniversalClient
	prefix string
	sid    string
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID reports whether sid looks like an id produced by [NewSessionID].
// Anything else coming from a cookie is discarded rather than used as a key fragment.
func ValidSessionID(sid string) bool {
	_, err := uuid.Parse(sid)
	return err == nil
}

// NewRedisStorage binds a RedisStorage to one session id.
func NewRedisStorage(client redis.UniversalClient, prefix, sid string) (*RedisStorage, error) {
	if !ValidSessionID(sid) {
		return nil, ErrInvalidSessionID
	}
	if prefix == "" {
		prefix = "cb"
	}
	return &RedisStorage{
		redis:  client,
		prefix: prefix,
		sid:    sid,
	}, nil
}

// SessionID returns the id this storage is bound to.
func (s *RedisStorage) SessionID() string {
	return s.sid
}

// Rotate moves the storage to a fresh session id and deletes the entries held under the
// old one. The switch happens even when the delete fails, so nothing written afterwards
// lands under the old id.
func (s *RedisStorage) Rotate(ctx context.Context) (string, error) {
	old := []string{s.key(EntryToken), s.key(EntryUser)}
	s.sid = NewSessionID()
	if err := s.redis.Del(ctx, old...).Err(); err != nil {
		return s.sid, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return s.sid, nil
}

func (s *RedisStorage) key(entry string) string {
	return s.prefix + ":" + s.sid + ":" + entry
}

func (s *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.redis.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return v, true, nil
}

func (s *RedisStorage) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
