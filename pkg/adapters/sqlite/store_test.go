package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aretw0/offramp/pkg/adapters/sqlite"
	"github.com/aretw0/offramp/pkg/domain"
	"github.com/aretw0/offramp/pkg/ports"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// The in-memory database lives and dies with a single connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteStore_Contract(t *testing.T) {
	store, err := sqlite.New(newTestDB(t))
	require.NoError(t, err)
	ports.RunStoreContract(t, store)
}

func TestSQLiteStore_MissingUniqueIndex(t *testing.T) {
	store, err := sqlite.New(newTestDB(t), sqlite.WithoutUniqueIndex())
	require.NoError(t, err)
	ctx := context.Background()

	rec := &domain.CancellationRecord{
		UserID:         "u",
		SubscriptionID: "s",
		Variant:        domain.VariantA,
		FlowData:       map[string]any{"gotJob": "no"},
	}

	_, err = store.Upsert(ctx, rec)
	assert.ErrorIs(t, err, domain.ErrNoUniqueConstraint)

	// The fallback path still lands the row.
	_, err = store.Insert(ctx, rec)
	require.NoError(t, err)

	recs, err := store.Fetch(ctx, "u", "s")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "no", recs[0].FlowData["gotJob"])
}
