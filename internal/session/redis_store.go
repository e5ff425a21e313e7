package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "sess:"
	userIndexPrefix  = "user_sessions:"
)

// RedisStore はセッションを Redis に保存します。値は Codec で暗号化されます。
type RedisStore struct {
	rdb   *redis.Client
	codec *Codec
	ttl   time.Duration
	now   func() time.Time
}

// NewRedisStore は RedisStore を作成します。
func NewRedisStore(rdb *redis.Client, codec *Codec, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		rdb:   rdb,
		codec: codec,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *RedisStore) Create(ctx context.Context, data Data) (string, error) {
	if data.Email == "" {
		return "", errors.New("session: email is required")
	}
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	if data.CreatedAt.IsZero() {
		data.CreatedAt = s.now()
	}
	sealed, err := s.codec.Seal(data)
	if err != nil {
		return "", fmt.Errorf("session: seal: %w", err)
	}

	indexKey := userIndexKey(data.Email)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(token), sealed, s.ttl)
		pipe.SAdd(ctx, indexKey, token)
		pipe.Expire(ctx, indexKey, s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("session: save: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (*Data, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	raw, err := s.rdb.Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: load: %w", err)
	}
	data, err := s.codec.Open(raw)
	if err != nil {
		// 鍵の変更や改ざんで復号できない値は破棄する
		_ = s.rdb.Del(ctx, sessionKey(token)).Err()
		return nil, ErrNotFound
	}
	return data, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	data, err := s.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(token))
		pipe.SRem(ctx, userIndexKey(data.Email), token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteAllForEmail(ctx context.Context, email string) (int, error) {
	indexKey := userIndexKey(email)
	tokens, err := s.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("session: list user sessions: %w", err)
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(tokens))
	members := make([]any, 0, len(tokens))
	for _, t := range tokens {
		keys = append(keys, sessionKey(t))
		members = append(members, t)
	}

	// 読み取った token だけを索引から外す。SMEMBERS 以降に作られたセッションは残る
	var deleted *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, keys...)
		pipe.SRem(ctx, indexKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("session: revoke user sessions: %w", err)
	}
	return int(deleted.Val()), nil
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

func userIndexKey(email string) string {
	return userIndexPrefix + email
}
