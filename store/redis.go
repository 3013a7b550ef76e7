package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisClient captures the commands the store needs from a redis client.
type RedisClient interface {
	// Get returns "" and no error for a missing key.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// RedisStore keeps each flow as a JSON value under prefix+flowID.
// Compare-and-set is serialized within the process.
type RedisStore struct {
	client    RedisClient
	ttl       time.Duration
	keyPrefix string
	mu        sync.Mutex
}

// NewRedisStore builds a store on client. A zero ttl keeps records forever.
func NewRedisStore(client RedisClient, ttl time.Duration, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "flow:"
	}
	return &RedisStore{client: client, ttl: ttl, keyPrefix: prefix}
}

func (s *RedisStore) Load(ctx context.Context, flowID string) (*Record, error) {
	if s == nil || s.client == nil {
		return nil, notConfigured("redis")
	}
	key := s.key(flowID)
	if key == "" {
		return nil, nil
	}
	rec, err := s.loadByKey(ctx, key)
	return rec, storeError(err, "load", flowID)
}

func (s *RedisStore) SaveIfVersion(ctx context.Context, rec *Record, expectedVersion int) (int, error) {
	if s == nil || s.client == nil {
		return 0, notConfigured("redis")
	}
	next, expected, err := prepare(rec, expectedVersion)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.key(next.FlowID)
	current, err := s.loadByKey(ctx, key)
	if err != nil {
		return 0, storeError(err, "load", next.FlowID)
	}
	version, err := applyVersion(next, current, expected)
	if err != nil {
		return 0, err
	}
	payload, err := json.Marshal(next)
	if err != nil {
		return 0, storeError(err, "encode", next.FlowID)
	}
	if err := s.client.Set(ctx, key, string(payload), s.ttl); err != nil {
		return 0, storeError(err, "save", next.FlowID)
	}
	return version, nil
}

func (s *RedisStore) List(ctx context.Context) ([]Record, error) {
	if s == nil || s.client == nil {
		return nil, notConfigured("redis")
	}
	keys, err := s.client.Keys(ctx, s.keyPrefix+"*")
	if err != nil {
		return nil, storeError(err, "list", "")
	}
	out := make([]Record, 0, len(keys))
	for _, key := range keys {
		rec, err := s.loadByKey(ctx, key)
		if err != nil {
			return nil, storeError(err, "list", strings.TrimPrefix(key, s.keyPrefix))
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, flowID string) error {
	if s == nil || s.client == nil {
		return notConfigured("redis")
	}
	key := s.key(flowID)
	if key == "" {
		return nil
	}
	return storeError(s.client.Del(ctx, key), "delete", flowID)
}

func (s *RedisStore) loadByKey(ctx context.Context, key string) (*Record, error) {
	value, err := s.client.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	var rec Record
	if err := json.Unmarshal([]byte(value), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RedisStore) key(flowID string) string {
	flowID = strings.TrimSpace(flowID)
	if flowID == "" {
		return ""
	}
	return s.keyPrefix + flowID
}

// GoRedisClient adapts a go-redis client to RedisClient.
type GoRedisClient struct {
	client redis.UniversalClient
}

func NewGoRedisClient(client redis.UniversalClient) *GoRedisClient {
	return &GoRedisClient{client: client}
}

func (c *GoRedisClient) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if stderrors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}

func (c *GoRedisClient) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c *GoRedisClient) Del(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

func (c *GoRedisClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	return c.client.Keys(ctx, pattern).Result()
}
