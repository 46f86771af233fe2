// Package variant assigns and pins the A/B cohort of a user. A cohort, once
// persisted, is immutable: every assignment path checks stored state before
// generating anything.
package variant

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"unicode/utf16"

	"github.com/aretw0/offramp/internal/logging"
	"github.com/aretw0/offramp/internal/metrics"
	"github.com/aretw0/offramp/pkg/domain"
	"github.com/aretw0/offramp/pkg/ports"
)

// Strategy selects how a first-time cohort is generated.
type Strategy string

const (
	// StrategyDeterministic derives the cohort from a stable hash of the
	// user id. This is the system of record: repeated calls agree without a
	// storage round trip, within and across runs.
	StrategyDeterministic Strategy = "deterministic"

	// StrategySecure draws the cohort from crypto/rand. Only ever used for
	// first-time seeding, never to re-roll a known user.
	StrategySecure Strategy = "secure"
)

// Deterministic derives a cohort from a 32-bit hash of the user id
// (h = (h<<5) - h + ch over UTF-16 code units), split 50/50 on parity.
func Deterministic(userID string) domain.Variant {
	var h int32
	for _, cu := range utf16.Encode([]rune(userID)) {
		h = (h << 5) - h + int32(cu)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	if abs%2 == 0 {
		return domain.VariantA
	}
	return domain.VariantB
}

// Secure draws a cohort from a cryptographically secure random bit.
func Secure() (domain.Variant, error) {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("failed to read random byte: %w", err)
	}
	if b[0]%2 == 0 {
		return domain.VariantA, nil
	}
	return domain.VariantB, nil
}

// Assigner resolves cohorts against persisted state.
type Assigner struct {
	store    ports.CancellationStore
	strategy Strategy
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Assigner.
type Option func(*Assigner)

// WithStrategy selects the first-time generation strategy.
func WithStrategy(s Strategy) Option {
	return func(a *Assigner) {
		a.strategy = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assigner) {
		a.logger = logger
	}
}

// WithMetrics enables assignment counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assigner) {
		a.metrics = m
	}
}

// NewAssigner creates an Assigner over the given store.
func NewAssigner(store ports.CancellationStore, opts ...Option) *Assigner {
	a := &Assigner{
		store:    store,
		strategy: StrategyDeterministic,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assign returns the cohort for a user. An existing cohort wins
// unconditionally; only when none is known is one generated.
func (a *Assigner) Assign(userID string, existing domain.Variant) domain.Variant {
	if existing.Valid() {
		return existing
	}
	return a.generate(userID)
}

func (a *Assigner) generate(userID string) domain.Variant {
	if a.strategy == StrategySecure {
		v, err := Secure()
		if err == nil {
			return v
		}
		a.logger.Warn("secure variant generation failed, falling back to deterministic", "error", err)
	}
	return Deterministic(userID)
}

// PinnedAssign resolves the cohort with the guarded read-before-write: the
// persisted record is consulted first, and a newly generated cohort is
// written exactly once. Subsequent loads hit the read path and never write.
func (a *Assigner) PinnedAssign(ctx context.Context, userID, subscriptionID string) (domain.Variant, error) {
	recs, err := a.store.Fetch(ctx, userID, "")
	if err != nil {
		return "", fmt.Errorf("failed to check persisted variant: %w", err)
	}
	for i := range recs {
		if recs[i].Variant.Valid() {
			a.logger.Debug("reusing persisted variant", "user_id", userID, "variant", recs[i].Variant)
			return recs[i].Variant, nil
		}
	}

	v := a.generate(userID)
	a.metrics.Assignment(string(v))

	// Pin the fresh cohort immediately so a concurrent open sees it. The
	// deterministic strategy makes a lost write harmless: the next call
	// regenerates the same value.
	_, err = a.store.Upsert(ctx, &domain.CancellationRecord{
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Variant:        v,
		FlowData:       map[string]any{},
		CurrentStep:    1,
	})
	if err != nil {
		a.logger.Warn("failed to persist new variant", "user_id", userID, "variant", v, "error", err)
	}
	return v, nil
}
