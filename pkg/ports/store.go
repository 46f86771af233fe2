// Package ports defines the driven-side contracts of the engine: what a
// storage backend must provide for cancellation records and subscription
// offers. Adapters under pkg/adapters implement these; the gateway and the
// variant assigner consume them.
package ports

import (
	"context"

	"github.com/aretw0/offramp/pkg/domain"
)

// CancellationStore persists flow results keyed by (userID, subscriptionID).
type CancellationStore interface {
	// Upsert inserts or replaces the record for its composite key. At most
	// one stored record exists per (userID, subscriptionID) pair. A backend
	// whose schema lacks the uniqueness constraint reports
	// domain.ErrNoUniqueConstraint instead of guessing.
	Upsert(ctx context.Context, rec *domain.CancellationRecord) (*domain.CancellationRecord, error)

	// Insert appends a record without requiring the uniqueness constraint.
	// Only the gateway's fallback path uses this.
	Insert(ctx context.Context, rec *domain.CancellationRecord) (*domain.CancellationRecord, error)

	// Fetch returns the records for a user, most recently updated first,
	// optionally filtered by subscription id (empty string = no filter).
	// No match is an empty slice, not an error.
	Fetch(ctx context.Context, userID, subscriptionID string) ([]domain.CancellationRecord, error)
}

// SubscriptionStore exposes the offer fields of subscriptions. Billing
// internals stay out of scope; the engine only flips offer state.
type SubscriptionStore interface {
	// SaveSubscription creates or replaces a subscription row.
	SaveSubscription(ctx context.Context, sub *domain.Subscription) error

	// UpdateOffer applies an offer decision to the subscription matching
	// (subscriptionID, userID). Returns domain.ErrSubscriptionNotFound when
	// no row matches.
	UpdateOffer(ctx context.Context, subscriptionID, userID string, upd domain.OfferUpdate) (*domain.Subscription, error)

	// Subscriptions returns the subscriptions of a user, optionally filtered
	// by id.
	Subscriptions(ctx context.Context, userID, subscriptionID string) ([]domain.Subscription, error)
}

// Store combines both contracts; every bundled adapter satisfies it.
type Store interface {
	CancellationStore
	SubscriptionStore
}
