// Package memory implements ports.Store with in-process maps. It backs unit
// tests and the interactive CLI walkthrough.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/offramp/pkg/domain"
)

type recordKey struct {
	userID         string
	subscriptionID string
}

// Store is an in-memory ports.Store. Safe for concurrent use.
type Store struct {
	mu            sync.RWMutex
	records       map[recordKey]*domain.CancellationRecord
	legacy        []*domain.CancellationRecord // rows inserted without the unique index
	subscriptions map[string]*domain.Subscription
	uniqueIndex   bool
}

// Option configures the Store.
type Option func(*Store)

// WithoutUniqueIndex simulates a backend whose schema migration has not run:
// Upsert reports domain.ErrNoUniqueConstraint and only Insert succeeds.
// The gateway's fallback path is exercised against this.
func WithoutUniqueIndex() Option {
	return func(s *Store) {
		s.uniqueIndex = false
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		records:       make(map[recordKey]*domain.CancellationRecord),
		subscriptions: make(map[string]*domain.Subscription),
		uniqueIndex:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cloneRecord(rec *domain.CancellationRecord) *domain.CancellationRecord {
	cp := *rec
	cp.FlowData = make(map[string]any, len(rec.FlowData))
	for k, v := range rec.FlowData {
		cp.FlowData[k] = v
	}
	return &cp
}

// Upsert inserts or replaces the record for its (userID, subscriptionID) key.
func (s *Store) Upsert(ctx context.Context, rec *domain.CancellationRecord) (*domain.CancellationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.uniqueIndex {
		return nil, domain.ErrNoUniqueConstraint
	}

	cp := cloneRecord(rec)
	key := recordKey{rec.UserID, rec.SubscriptionID}
	if prev, ok := s.records[key]; ok {
		cp.CreatedAt = prev.CreatedAt
	} else {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = time.Now().UTC()

	s.records[key] = cp
	return cloneRecord(cp), nil
}

// Insert appends a record without touching the keyed map. Mirrors a table
// missing its unique index: duplicates are possible and the caller knows it.
func (s *Store) Insert(ctx context.Context, rec *domain.CancellationRecord) (*domain.CancellationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := cloneRecord(rec)
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	s.legacy = append(s.legacy, cp)
	return cloneRecord(cp), nil
}

// Fetch returns the records for a user, most recently updated first.
func (s *Store) Fetch(ctx context.Context, userID, subscriptionID string) ([]domain.CancellationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CancellationRecord
	match := func(rec *domain.CancellationRecord) bool {
		if rec.UserID != userID {
			return false
		}
		return subscriptionID == "" || rec.SubscriptionID == subscriptionID
	}

	for _, rec := range s.records {
		if match(rec) {
			out = append(out, *cloneRecord(rec))
		}
	}
	for _, rec := range s.legacy {
		if match(rec) {
			out = append(out, *cloneRecord(rec))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// SaveSubscription creates or replaces a subscription row.
func (s *Store) SaveSubscription(ctx context.Context, sub *domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sub
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = time.Now().UTC()
	s.subscriptions[sub.ID] = &cp
	return nil
}

// UpdateOffer applies an offer decision to the matching subscription.
func (s *Store) UpdateOffer(ctx context.Context, subscriptionID, userID string, upd domain.OfferUpdate) (*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subscriptionID]
	if !ok || sub.UserID != userID {
		return nil, domain.ErrSubscriptionNotFound
	}

	now := time.Now().UTC()
	sub.OfferPercent = upd.Percent
	sub.OfferAccepted = upd.Accepted
	if upd.Accepted {
		sub.OfferAcceptedAt = &now
		sub.OfferDeclinedAt = nil
	} else {
		sub.OfferDeclinedAt = &now
		sub.OfferAcceptedAt = nil
	}
	sub.UpdatedAt = now

	cp := *sub
	return &cp, nil
}

// Subscriptions returns the subscriptions of a user.
func (s *Store) Subscriptions(ctx context.Context, userID, subscriptionID string) ([]domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Subscription
	for _, sub := range s.subscriptions {
		if sub.UserID != userID {
			continue
		}
		if subscriptionID != "" && sub.ID != subscriptionID {
			continue
		}
		out = append(out, *sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
