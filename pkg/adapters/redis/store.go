// Package redis implements ports.Store on Redis. Records are stored as JSON
// values under composite keys; a per-user sorted set keeps fetches ordered
// by update time.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/offramp/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.Store using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the expiration for stored records.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "offramp:",
		ttl:    0, // no expiration by default
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) recordKey(userID, subscriptionID string) string {
	return s.prefix + "cancellation:" + userID + ":" + subscriptionID
}

func (s *Store) recordIndexKey(userID string) string {
	return s.prefix + "cancellation:index:" + userID
}

func (s *Store) subscriptionKey(id string) string {
	return s.prefix + "subscription:" + id
}

func (s *Store) save(ctx context.Context, rec *domain.CancellationRecord) (*domain.CancellationRecord, error) {
	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(&cp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.recordKey(cp.UserID, cp.SubscriptionID), data, s.ttl)
	pipe.ZAdd(ctx, s.recordIndexKey(cp.UserID), backend.Z{
		Score:  float64(cp.UpdatedAt.UnixNano()),
		Member: cp.SubscriptionID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to save to redis: %w", err)
	}
	return &cp, nil
}

// Upsert stores the record under its composite key. The key space itself
// enforces one record per (userID, subscriptionID).
func (s *Store) Upsert(ctx context.Context, rec *domain.CancellationRecord) (*domain.CancellationRecord, error) {
	// Preserve the original creation time on overwrite.
	if existing, err := s.load(ctx, rec.UserID, rec.SubscriptionID); err == nil {
		cp := *rec
		cp.CreatedAt = existing.CreatedAt
		return s.save(ctx, &cp)
	}
	return s.save(ctx, rec)
}

// Insert is identical to Upsert here: SET on a fully-qualified key cannot
// produce duplicates, so the missing-constraint condition never arises.
func (s *Store) Insert(ctx context.Context, rec *domain.CancellationRecord) (*domain.CancellationRecord, error) {
	return s.save(ctx, rec)
}

func (s *Store) load(ctx context.Context, userID, subscriptionID string) (*domain.CancellationRecord, error) {
	val, err := s.client.Get(ctx, s.recordKey(userID, subscriptionID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	var rec domain.CancellationRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// Fetch returns the records for a user, most recently updated first.
func (s *Store) Fetch(ctx context.Context, userID, subscriptionID string) ([]domain.CancellationRecord, error) {
	if subscriptionID != "" {
		rec, err := s.load(ctx, userID, subscriptionID)
		if err != nil {
			if err == domain.ErrRecordNotFound {
				return nil, nil
			}
			return nil, err
		}
		return []domain.CancellationRecord{*rec}, nil
	}

	subs, err := s.client.ZRevRange(ctx, s.recordIndexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	out := make([]domain.CancellationRecord, 0, len(subs))
	for _, sub := range subs {
		rec, err := s.load(ctx, userID, sub)
		if err != nil {
			if err == domain.ErrRecordNotFound {
				// Expired value still indexed; skip it.
				continue
			}
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// SaveSubscription creates or replaces a subscription row.
func (s *Store) SaveSubscription(ctx context.Context, sub *domain.Subscription) error {
	cp := *sub
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.subscriptionKey(cp.ID), data, 0)
	pipe.SAdd(ctx, s.prefix+"subscription:index:"+cp.UserID, cp.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (s *Store) loadSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	val, err := s.client.Get(ctx, s.subscriptionKey(id)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	var sub domain.Subscription
	if err := json.Unmarshal([]byte(val), &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscription: %w", err)
	}
	return &sub, nil
}

// UpdateOffer applies an offer decision to the matching subscription.
func (s *Store) UpdateOffer(ctx context.Context, subscriptionID, userID string, upd domain.OfferUpdate) (*domain.Subscription, error) {
	sub, err := s.loadSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
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

	data, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal subscription: %w", err)
	}
	if err := s.client.Set(ctx, s.subscriptionKey(sub.ID), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}
	return sub, nil
}

// Subscriptions returns the subscriptions of a user.
func (s *Store) Subscriptions(ctx context.Context, userID, subscriptionID string) ([]domain.Subscription, error) {
	if subscriptionID != "" {
		sub, err := s.loadSubscription(ctx, subscriptionID)
		if err != nil {
			if err == domain.ErrSubscriptionNotFound {
				return nil, nil
			}
			return nil, err
		}
		if sub.UserID != userID {
			return nil, nil
		}
		return []domain.Subscription{*sub}, nil
	}

	ids, err := s.client.SMembers(ctx, s.prefix+"subscription:index:"+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	out := make([]domain.Subscription, 0, len(ids))
	for _, id := range ids {
		sub, err := s.loadSubscription(ctx, id)
		if err != nil {
			if err == domain.ErrSubscriptionNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
