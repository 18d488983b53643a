package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"newsrag/types"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps each session as a Redis list of JSON messages under
// session:{id}, oldest at the head. Redis owns expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    Clock
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, msg types.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	key := Key(sessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append to %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Recent(ctx context.Context, sessionID string, count int) ([]types.Message, error) {
	start := int64(0)
	if count > 0 {
		start = -int64(count)
	}

	key := Key(sessionID)
	raw, err := s.client.LRange(ctx, key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	msgs := make([]types.Message, 0, len(raw))
	for _, r := range raw {
		var m types.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode message in %s: %w", key, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, Key(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear %s: %w", Key(sessionID), err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
