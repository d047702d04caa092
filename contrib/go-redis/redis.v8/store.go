// Package redis_v8 keeps the profiler session in redis, so a restarted bot process picks up
// the session it was running.
package redis_v8

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler/common"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler/store"
)

const defaultKey = "tickprof:session"

type config struct {
	key string
	ttl time.Duration
}

type Option func(*config)

func WithKey(key string) Option {
	return func(c *config) {
		c.key = key
	}
}

// WithTTL expires the stored session. Zero keeps it until cleared.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

type Store struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

var _ store.SessionStore = (*Store)(nil)

func NewStore(client redis.UniversalClient, opts ...Option) *Store {
	c := &config{key: defaultKey}
	for _, opt := range opts {
		opt(c)
	}
	return &Store{client: client, key: c.key, ttl: c.ttl}
}

func (s *Store) Load(ctx context.Context) (*common.Session, error) {
	b, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return store.Decode(b)
}

func (s *Store) Save(ctx context.Context, session *common.Session) error {
	if session == nil {
		return s.Clear(ctx)
	}
	b, err := store.Encode(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, b, s.ttl).Err()
}

func (s *Store) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
