package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Voupi/sistema-gestion-addag/internal/adapters/contracttest"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
	sequenceport "github.com/Voupi/sistema-gestion-addag/internal/ports/out/sequence"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestContract_RedisSequence(t *testing.T) {
	contracttest.RunSequence(t, func(t *testing.T) (sequenceport.Sequence, func()) {
		t.Helper()
		_, client := newMiniredis(t)
		return NewSequence(client), nil
	})
}

func TestSequence_UsesPerKindKeys(t *testing.T) {
	mr, client := newMiniredis(t)
	seq := NewSequence(client, WithKeyPrefix("test:seq:"))

	_, err := seq.Next(context.Background(), domain.KindParking)
	require.NoError(t, err)

	got, err := mr.Get("test:seq:parking")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
	assert.False(t, mr.Exists("test:seq:membership"))
}

func TestSequence_FloorNeverLowers(t *testing.T) {
	_, client := newMiniredis(t)
	seq := NewSequence(client)
	ctx := context.Background()

	require.NoError(t, seq.Floor(ctx, domain.KindMembership, 120))
	n, err := seq.Next(ctx, domain.KindMembership)
	require.NoError(t, err)
	assert.Equal(t, int64(121), n)

	require.NoError(t, seq.Floor(ctx, domain.KindMembership, 5))
	n, err = seq.Next(ctx, domain.KindMembership)
	require.NoError(t, err)
	assert.Equal(t, int64(122), n)
}

func TestSequence_UnreachableIsUnavailable(t *testing.T) {
	mr, client := newMiniredis(t)
	seq := NewSequence(client)
	mr.Close()

	_, err := seq.Next(context.Background(), domain.KindMembership)
	require.Error(t, err)
	assert.True(t, errors.Is(err, recordstore.ErrUnavailable), "err=%v", err)
}
