package mirror

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOperationTimeout = 5 * time.Second

// RedisMirror stores each fragment as a JSON string under a prefixed key.
type RedisMirror struct {
	client *redis.Client
	prefix string
}

func NewRedisMirror(dsn string) (*RedisMirror, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, err
	}
	return NewRedisMirrorWithClient(redis.NewClient(opts)), nil
}

func NewRedisMirrorWithClient(client *redis.Client) *RedisMirror {
	return &RedisMirror{
		client: client,
		prefix: "chatsync:",
	}
}

func (m *RedisMirror) key(fragment string) string {
	return m.prefix + fragment
}

func (m *RedisMirror) Save(key string, value any) error {
	if m == nil || m.client == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOperationTimeout)
	defer cancel()
	return m.client.Set(ctx, m.key(key), data, 0).Err()
}

func (m *RedisMirror) Load(key string, out any) bool {
	if m == nil || m.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOperationTimeout)
	defer cancel()
	data, err := m.client.Get(ctx, m.key(key)).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(data), out) == nil
}

func (m *RedisMirror) Clear(keys ...string) error {
	if m == nil || m.client == nil || len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		prefixed = append(prefixed, m.key(key))
	}
	if len(prefixed) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOperationTimeout)
	defer cancel()
	return m.client.Del(ctx, prefixed...).Err()
}

func (m *RedisMirror) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}
