package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/offramp/pkg/adapters/redis"
	"github.com/aretw0/offramp/pkg/domain"
	"github.com/aretw0/offramp/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, opts ...redis.Option) (*miniredis.Miniredis, *redis.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	return mr, redis.NewFromClient(client, opts...)
}

func TestRedisStore_Contract(t *testing.T) {
	_, store := newTestStore(t)
	ports.RunStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, store := newTestStore(t, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	rec := &domain.CancellationRecord{UserID: "u", SubscriptionID: "s", Variant: domain.VariantB}
	_, err := store.Upsert(ctx, rec)
	require.NoError(t, err)

	recs, err := store.Fetch(ctx, "u", "")
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	mr.FastForward(2 * time.Second)

	// Value expired; the stale index entry is skipped, not surfaced.
	recs, err = store.Fetch(ctx, "u", "")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRedisStore_CreatedAtPreserved(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Upsert(ctx, &domain.CancellationRecord{UserID: "u", SubscriptionID: "s", Variant: domain.VariantA})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	second, err := store.Upsert(ctx, &domain.CancellationRecord{UserID: "u", SubscriptionID: "s", Variant: domain.VariantA, Completed: true})
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}
