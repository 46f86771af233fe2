package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/offramp/pkg/adapters/memory"
	"github.com/aretw0/offramp/pkg/domain"
	"github.com/aretw0/offramp/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunStoreContract(t, store)
}

func TestMemoryStore_WithoutUniqueIndex(t *testing.T) {
	store := memory.NewStore(memory.WithoutUniqueIndex())
	ctx := context.Background()

	rec := &domain.CancellationRecord{UserID: "u", SubscriptionID: "s", Variant: domain.VariantA}

	_, err := store.Upsert(ctx, rec)
	assert.ErrorIs(t, err, domain.ErrNoUniqueConstraint)

	// Insert bypasses the missing index, like a plain INSERT would.
	_, err = store.Insert(ctx, rec)
	require.NoError(t, err)

	recs, err := store.Fetch(ctx, "u", "s")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
