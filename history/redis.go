package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/varkai/chatflow/types"
)

// RedisStore persists snapshots in redis. Suitable for deployments where
// several session hosts share one conversation cache.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "chatflow:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix + "snapshot:"}, nil
}

func (s *RedisStore) key(threadID string) string {
	return s.keyPrefix + threadID
}

func (s *RedisStore) Save(ctx context.Context, threadID string, msgs []types.ChatMessage) error {
	payload, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(threadID), payload, 0)
	pipe.SAdd(ctx, s.keyPrefix+"index", threadID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Load(ctx context.Context, threadID string) ([]types.ChatMessage, error) {
	data, err := s.client.Get(ctx, s.key(threadID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var msgs []types.ChatMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return msgs, nil
}

func (s *RedisStore) Delete(ctx context.Context, threadID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(threadID))
	pipe.SRem(ctx, s.keyPrefix+"index", threadID)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Threads(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, s.keyPrefix+"index").Result()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
