package lists

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fenilsonani/listmunge/internal/config"
)

// ErrNoSequence is returned when a list's sequence has not been initialized.
var ErrNoSequence = errors.New("post sequence not initialized")

// Sequence stores the post sequence number of each list. The stored value
// is the number the next post will carry.
type Sequence interface {
	// Current returns the stored number for list.
	Current(ctx context.Context, list string) (int, error)
	// Next advances the number for list and returns the new value.
	Next(ctx context.Context, list string) (int, error)
	// Set overwrites the number for list.
	Set(ctx context.Context, list string, n int) error
	// Init stores start for list unless a number is already stored.
	Init(ctx context.Context, list string, start int) error
	Close() error
}

// OpenSequence opens the sequence store selected by cfg.
func OpenSequence(cfg config.SequenceConfig) (Sequence, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return NewMemorySequence(), nil
	case config.BackendSQLite:
		return OpenSQLiteSequence(cfg.DatabasePath)
	case config.BackendRedis:
		seq, err := NewRedisSequence(RedisConfig{
			RedisURL: cfg.RedisURL,
			Prefix:   cfg.Prefix,
			Timeout:  cfg.TimeoutDuration(),
		})
		if err != nil {
			return nil, err
		}
		return NewGuardedSequence(seq, config.BackendRedis), nil
	default:
		return nil, fmt.Errorf("unknown sequence backend %q", cfg.Backend)
	}
}

// MemorySequence is a process-local Sequence.
type MemorySequence struct {
	mu   sync.Mutex
	nums map[string]int
}

// NewMemorySequence returns an empty MemorySequence.
func NewMemorySequence() *MemorySequence {
	return &MemorySequence{nums: make(map[string]int)}
}

func (s *MemorySequence) Current(_ context.Context, list string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nums[list]
	if !ok {
		return 0, ErrNoSequence
	}
	return n, nil
}

func (s *MemorySequence) Next(_ context.Context, list string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nums[list]
	if !ok {
		return 0, ErrNoSequence
	}
	n++
	s.nums[list] = n
	return n, nil
}

func (s *MemorySequence) Set(_ context.Context, list string, n int) error {
	if n < 0 {
		return fmt.Errorf("post id cannot be negative: %d", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nums[list] = n
	return nil
}

func (s *MemorySequence) Init(_ context.Context, list string, start int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nums[list]; !ok {
		s.nums[list] = start
	}
	return nil
}

func (s *MemorySequence) Close() error { return nil }
