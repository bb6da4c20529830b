package lists

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSequenceClosed is returned by a closed RedisSequence.
var ErrSequenceClosed = errors.New("sequence store is closed")

// incrIfExists advances a sequence key without creating it.
var incrIfExists = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return redis.call('INCR', KEYS[1])
end
return false
`)

// RedisConfig configures the Redis sequence store.
type RedisConfig struct {
	// RedisURL is the Redis connection URL.
	RedisURL string
	// Prefix is the key prefix for all sequence keys.
	Prefix string
	// Timeout bounds connecting to Redis.
	Timeout time.Duration
}

// RedisSequence is a Sequence shared through Redis, so several runners
// can number posts for the same list.
type RedisSequence struct {
	client *redis.Client
	prefix string
	closed int32 // atomic: 1 if closed, 0 if open
}

// NewRedisSequence connects to Redis and returns a RedisSequence.
func NewRedisSequence(cfg RedisConfig) (*RedisSequence, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	opts.MaxRetries = 3
	opts.MinRetryBackoff = 100 * time.Millisecond
	opts.MaxRetryBackoff = 1 * time.Second
	opts.DialTimeout = timeout
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolSize = 4

	client := redis.NewClient(opts)

	// Test connection with retry
	ctx, cancel := context.WithTimeout(context.Background(), 2*timeout)
	defer cancel()

	var lastErr error
	for i := 0; i < 3; i++ {
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			break
		}
		if i < 2 {
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(i+1) * 200 * time.Millisecond):
			}
		}
	}
	if lastErr != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis after retries: %w", lastErr)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "listmunge"
	}
	return &RedisSequence{client: client, prefix: prefix}, nil
}

func (s *RedisSequence) key(list string) string {
	return s.prefix + ":seq:" + list
}

func (s *RedisSequence) isClosed() bool {
	return atomic.LoadInt32(&s.closed) == 1
}

func (s *RedisSequence) Current(ctx context.Context, list string) (int, error) {
	if s.isClosed() {
		return 0, ErrSequenceClosed
	}
	n, err := s.client.Get(ctx, s.key(list)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNoSequence
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read post id: %w", err)
	}
	return n, nil
}

func (s *RedisSequence) Next(ctx context.Context, list string) (int, error) {
	if s.isClosed() {
		return 0, ErrSequenceClosed
	}
	n, err := incrIfExists.Run(ctx, s.client, []string{s.key(list)}).Int()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNoSequence
	}
	if err != nil {
		return 0, fmt.Errorf("failed to advance post id: %w", err)
	}
	return n, nil
}

func (s *RedisSequence) Set(ctx context.Context, list string, n int) error {
	if s.isClosed() {
		return ErrSequenceClosed
	}
	if n < 0 {
		return fmt.Errorf("post id cannot be negative: %d", n)
	}
	if err := s.client.Set(ctx, s.key(list), n, 0).Err(); err != nil {
		return fmt.Errorf("failed to set post id: %w", err)
	}
	return nil
}

func (s *RedisSequence) Init(ctx context.Context, list string, start int) error {
	if s.isClosed() {
		return ErrSequenceClosed
	}
	if err := s.client.SetNX(ctx, s.key(list), start, 0).Err(); err != nil {
		return fmt.Errorf("failed to init post id: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisSequence) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	return s.client.Close()
}
