// Package gateway mediates between live flow state and durable storage. It
// owns the commit semantics: idempotent upsert on the composite key, the
// insert fallback when the backing schema is missing its uniqueness
// constraint, and the single-commit-in-flight guard.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/offramp/internal/logging"
	"github.com/aretw0/offramp/internal/metrics"
	"github.com/aretw0/offramp/pkg/domain"
	"github.com/aretw0/offramp/pkg/ports"
)

// Gateway persists flow outcomes through a CancellationStore.
type Gateway struct {
	store   ports.CancellationStore
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	inFlight map[string]bool
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMetrics enables commit counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// New creates a Gateway over the given store.
func New(store ports.CancellationStore, opts ...Option) *Gateway {
	g := &Gateway{
		store:    store,
		logger:   logging.NewNop(),
		inFlight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Commit writes the terminal snapshot of a flow for (userID, subscriptionID).
// The write is idempotent: repeating it replaces the stored record rather
// than duplicating it. A concurrent commit for the same key is rejected with
// domain.ErrCommitInFlight. On failure the stored state is left untouched and
// the caller's FlowState is not consumed; retrying is safe.
func (g *Gateway) Commit(ctx context.Context, userID, subscriptionID string, state *domain.FlowState) (*domain.CancellationRecord, error) {
	key := userID + "/" + subscriptionID
	g.mu.Lock()
	if g.inFlight[key] {
		g.mu.Unlock()
		g.metrics.Commit("rejected")
		return nil, fmt.Errorf("commit for %s: %w", key, domain.ErrCommitInFlight)
	}
	g.inFlight[key] = true
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.inFlight, key)
		g.mu.Unlock()
	}()

	rec, err := g.buildRecord(userID, subscriptionID, state)
	if err != nil {
		g.metrics.Commit("error")
		return nil, err
	}

	stored, err := g.persist(ctx, rec)
	if err != nil {
		g.metrics.Commit("error")
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}

	g.metrics.Commit("ok")
	g.logger.Info("cancellation committed",
		"user_id", userID,
		"subscription_id", subscriptionID,
		"variant", stored.Variant,
		"decision", stored.FinalDecision)
	return stored, nil
}

// Save writes an externally built record through the same upsert-or-insert
// path as Commit, without touching the in-flight guard. The HTTP adapter uses
// it for direct record writes. Core fields the caller left empty are decoded
// out of the flow-data map, so a client sending only flowData still lands
// queryable columns.
func (g *Gateway) Save(ctx context.Context, rec *domain.CancellationRecord) (*domain.CancellationRecord, error) {
	if err := decodeCoreFields(rec); err != nil {
		g.metrics.Commit("error")
		return nil, err
	}
	stored, err := g.persist(ctx, rec)
	if err != nil {
		g.metrics.Commit("error")
		return nil, fmt.Errorf("failed to save cancellation: %w", err)
	}
	g.metrics.Commit("ok")
	return stored, nil
}

// persist upserts and degrades to a plain insert when the backing schema is
// missing its uniqueness constraint.
func (g *Gateway) persist(ctx context.Context, rec *domain.CancellationRecord) (*domain.CancellationRecord, error) {
	stored, err := g.store.Upsert(ctx, rec)
	if errors.Is(err, domain.ErrNoUniqueConstraint) {
		// The schema migration adding the unique index has not run. Degrade to
		// a plain insert so the cancellation still lands, and make noise.
		g.logger.Warn("store is missing the unique constraint on (user_id, subscription_id), falling back to insert",
			"user_id", rec.UserID, "subscription_id", rec.SubscriptionID)
		g.metrics.Commit("insert_fallback")
		return g.store.Insert(ctx, rec)
	}
	return stored, err
}

// buildRecord flattens the answer map and decodes the denormalized core
// fields out of it.
func (g *Gateway) buildRecord(userID, subscriptionID string, state *domain.FlowState) (*domain.CancellationRecord, error) {
	rec := &domain.CancellationRecord{
		UserID:           userID,
		SubscriptionID:   subscriptionID,
		Variant:          state.Variant,
		FlowData:         state.Flatten(),
		CurrentStep:      state.Ordinal + 1,
		Completed:        state.Completed,
		AcceptedDownsell: state.AcceptedOffer,
		FinalDecision:    state.FinalDecision,
	}
	if err := decodeCoreFields(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// decodeCoreFields derives the denormalized columns from the flow-data map.
// Fields the caller already set are left alone; explicit values win over
// derived ones.
func decodeCoreFields(rec *domain.CancellationRecord) error {
	var derived domain.CancellationRecord
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &derived,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build flow-data decoder: %w", err)
	}
	if err := dec.Decode(rec.FlowData); err != nil {
		return fmt.Errorf("failed to decode core fields: %w", err)
	}
	if rec.GotJob == "" {
		rec.GotJob = derived.GotJob
	}
	if rec.CancelReason == "" {
		rec.CancelReason = derived.CancelReason
	}
	if rec.CompanyVisaSupport == "" {
		rec.CompanyVisaSupport = derived.CompanyVisaSupport
	}
	return nil
}

// Fetch returns the stored records for a user, optionally filtered by
// subscription.
func (g *Gateway) Fetch(ctx context.Context, userID, subscriptionID string) ([]domain.CancellationRecord, error) {
	return g.store.Fetch(ctx, userID, subscriptionID)
}

// Latest returns the most recent record for the exact composite key, or
// domain.ErrRecordNotFound.
func (g *Gateway) Latest(ctx context.Context, userID, subscriptionID string) (*domain.CancellationRecord, error) {
	recs, err := g.store.Fetch(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, domain.ErrRecordNotFound
	}
	return &recs[0], nil
}
