package gateway_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/offramp/internal/gateway"
	"github.com/aretw0/offramp/pkg/adapters/memory"
	"github.com/aretw0/offramp/pkg/domain"
)

func completedState(variant domain.Variant) *domain.FlowState {
	state := domain.NewFlowState(variant)
	state.SetAnswer("got-job", "gotJob", "no")
	state.SetAnswer("cancel-reason", "cancelReason", "too-expensive")
	state.SetAnswer("cancel-reason", domain.CompositeKey("cancelReason", "too-expensive"), "15")
	state.Completed = true
	state.FinalDecision = domain.DecisionCancelled
	return state
}

func TestCommit_DecodesCoreFields(t *testing.T) {
	g := gateway.New(memory.NewStore())

	rec, err := g.Commit(context.Background(), "u1", "s1", completedState(domain.VariantB))
	require.NoError(t, err)

	assert.Equal(t, "no", rec.GotJob)
	assert.Equal(t, "too-expensive", rec.CancelReason)
	assert.Empty(t, rec.CompanyVisaSupport)
	assert.Equal(t, domain.VariantB, rec.Variant)
	assert.Equal(t, domain.DecisionCancelled, rec.FinalDecision)
	assert.True(t, rec.Completed)
	assert.Equal(t, "15", rec.FlowData["cancelReason_too-expensive"])
}

func TestCommit_Idempotent(t *testing.T) {
	store := memory.NewStore()
	g := gateway.New(store)
	ctx := context.Background()

	_, err := g.Commit(ctx, "u1", "s1", completedState(domain.VariantA))
	require.NoError(t, err)

	state := completedState(domain.VariantA)
	state.SetAnswer("cancel-reason", "cancelReason", "other")
	_, err = g.Commit(ctx, "u1", "s1", state)
	require.NoError(t, err)

	recs, err := store.Fetch(ctx, "u1", "s1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "other", recs[0].CancelReason)
}

func TestCommit_InsertFallback(t *testing.T) {
	store := memory.NewStore(memory.WithoutUniqueIndex())
	g := gateway.New(store)
	ctx := context.Background()

	rec, err := g.Commit(ctx, "u1", "s1", completedState(domain.VariantA))
	require.NoError(t, err)
	assert.Equal(t, "no", rec.GotJob)

	recs, err := store.Fetch(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestCommit_InFlightGuard(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	store := &blockingStore{Store: memory.NewStore(), entered: entered, release: release}
	g := gateway.New(store)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := g.Commit(ctx, "u1", "s1", completedState(domain.VariantA))
		done <- err
	}()
	<-entered

	// Same key is rejected while the first commit is still writing.
	_, err := g.Commit(ctx, "u1", "s1", completedState(domain.VariantA))
	assert.ErrorIs(t, err, domain.ErrCommitInFlight)

	// A different key is unaffected.
	_, err = g.Commit(ctx, "u2", "s2", completedState(domain.VariantA))
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)

	// The guard clears once the write resolves.
	_, err = g.Commit(ctx, "u1", "s1", completedState(domain.VariantA))
	assert.NoError(t, err)
}

func TestLatest(t *testing.T) {
	g := gateway.New(memory.NewStore())
	ctx := context.Background()

	_, err := g.Latest(ctx, "u1", "s1")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	_, err = g.Commit(ctx, "u1", "s1", completedState(domain.VariantA))
	require.NoError(t, err)

	rec, err := g.Latest(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)
}

// blockingStore stalls the first Upsert for key u1/s1 until released.
type blockingStore struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
	blocked bool
}

func (s *blockingStore) Upsert(ctx context.Context, rec *domain.CancellationRecord) (*domain.CancellationRecord, error) {
	if rec.UserID == "u1" && !s.blocked {
		s.blocked = true
		close(s.entered)
		<-s.release
	}
	return s.Store.Upsert(ctx, rec)
}

func TestSave_DerivesCoreFields(t *testing.T) {
	g := gateway.New(memory.NewStore())

	rec, err := g.Save(context.Background(), &domain.CancellationRecord{
		UserID:         "u1",
		SubscriptionID: "s1",
		Variant:        domain.VariantA,
		CancelReason:   "other",
		FlowData: map[string]any{
			"gotJob":             "no",
			"cancelReason":       "too-expensive",
			"companyVisaSupport": "yes",
		},
	})
	require.NoError(t, err)

	// Derived from flow data.
	assert.Equal(t, "no", rec.GotJob)
	assert.Equal(t, "yes", rec.CompanyVisaSupport)
	// The caller's explicit value wins over the derived one.
	assert.Equal(t, "other", rec.CancelReason)
}
