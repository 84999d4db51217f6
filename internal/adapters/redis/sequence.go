// Package redis hosts the Redis-backed card counter used when several API
// processes share one Postgres or SQLite store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/redis/go-redis/v9"

	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
)

const defaultKeyPrefix = "carnet:card_seq:"

// Sequence is a Redis-backed sequence.Sequence. INCR is atomic across clients.
type Sequence struct {
	client    *redis.Client
	keyPrefix string
}

// SequenceOption configures a Sequence.
type SequenceOption func(*Sequence)

func WithKeyPrefix(prefix string) SequenceOption {
	return func(s *Sequence) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

func NewSequence(client *redis.Client, opts ...SequenceOption) *Sequence {
	s := &Sequence{client: client, keyPrefix: defaultKeyPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// NewClient parses url and verifies connectivity.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (s *Sequence) Key(kind domain.RecordKind) string {
	return s.keyPrefix + kind.Slug()
}

func (s *Sequence) Next(ctx context.Context, kind domain.RecordKind) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("invalid record kind %q", kind)
	}
	n, err := s.client.Incr(ctx, s.Key(kind)).Result()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) {
			return 0, fmt.Errorf("%w: %v", recordstore.ErrUnavailable, err)
		}
		return 0, fmt.Errorf("incr card sequence: %w", err)
	}
	return n, nil
}

func (s *Sequence) Current(ctx context.Context, kind domain.RecordKind) (int64, error) {
	n, err := s.client.Get(ctx, s.Key(kind)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read card sequence: %w", err)
	}
	return n, nil
}

// Floor raises the counter to at least min so numbers already issued by
// another backend are not handed out again.
func (s *Sequence) Floor(ctx context.Context, kind domain.RecordKind, min int64) error {
	script := redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
if cur < tonumber(ARGV[1]) then
  redis.call("SET", KEYS[1], ARGV[1])
end
return 1`)
	if err := script.Run(ctx, s.client, []string{s.Key(kind)}, min).Err(); err != nil {
		return fmt.Errorf("floor card sequence: %w", err)
	}
	return nil
}
