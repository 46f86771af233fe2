// Package sqlite implements ports.Store on SQLite via database/sql.
//
// It expects an *sql.DB opened with a SQLite driver (for example
// "modernc.org/sqlite"). The caller imports the driver:
//
//	import _ "modernc.org/sqlite"
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/offramp/pkg/domain"
	"github.com/aretw0/offramp/pkg/ports"
)

// Store implements ports.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ ports.Store = (*Store)(nil)

// Option configures schema initialization.
type Option func(*config)

type config struct {
	uniqueIndex bool
}

// WithoutUniqueIndex skips creating the (user_id, subscription_id) unique
// index, reproducing an unmigrated deployment. Upserts against such a schema
// report domain.ErrNoUniqueConstraint.
func WithoutUniqueIndex() Option {
	return func(c *config) {
		c.uniqueIndex = false
	}
}

// New initializes the schema in the given database and returns a Store.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	cfg := config{uniqueIndex: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Store{db: db}
	if err := s.initSchema(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(cfg config) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cancellations (
			user_id TEXT NOT NULL,
			subscription_id TEXT NOT NULL,
			downsell_variant TEXT NOT NULL,
			got_job TEXT,
			cancel_reason TEXT,
			company_visa_support TEXT,
			accepted_downsell INTEGER NOT NULL DEFAULT 0,
			final_decision TEXT,
			flow_data BLOB,
			current_step INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS subscriptions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			monthly_price INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			offer_percent INTEGER NOT NULL DEFAULT 0,
			offer_accepted INTEGER NOT NULL DEFAULT 0,
			offer_accepted_at TEXT,
			offer_declined_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	)
	if err != nil {
		return err
	}

	if cfg.uniqueIndex {
		_, err = s.db.Exec(`
			CREATE UNIQUE INDEX IF NOT EXISTS cancellations_user_subscription
			ON cancellations (user_id, subscription_id);`,
		)
	}
	return err
}

// missingConstraint detects SQLite's complaint about an ON CONFLICT clause
// that has no backing unique index.
func missingConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "ON CONFLICT clause does not match")
}

const timeLayout = time.RFC3339Nano

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

// Upsert inserts or replaces the record keyed by (user_id, subscription_id).
func (s *Store) Upsert(ctx context.Context, rec *domain.CancellationRecord) (*domain.CancellationRecord, error) {
	flowData, err := json.Marshal(rec.FlowData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode flow data: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cancellations (
			user_id, subscription_id, downsell_variant,
			got_job, cancel_reason, company_visa_support,
			accepted_downsell, final_decision, flow_data,
			current_step, completed, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, subscription_id) DO UPDATE SET
			downsell_variant = excluded.downsell_variant,
			got_job = excluded.got_job,
			cancel_reason = excluded.cancel_reason,
			company_visa_support = excluded.company_visa_support,
			accepted_downsell = excluded.accepted_downsell,
			final_decision = excluded.final_decision,
			flow_data = excluded.flow_data,
			current_step = excluded.current_step,
			completed = excluded.completed,
			updated_at = excluded.updated_at`,
		rec.UserID, rec.SubscriptionID, string(rec.Variant),
		rec.GotJob, rec.CancelReason, rec.CompanyVisaSupport,
		rec.AcceptedDownsell, rec.FinalDecision, flowData,
		rec.CurrentStep, rec.Completed, encodeTime(now), encodeTime(now),
	)
	if err != nil {
		if missingConstraint(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrNoUniqueConstraint, err)
		}
		return nil, fmt.Errorf("failed to upsert cancellation: %w", err)
	}

	recs, err := s.Fetch(ctx, rec.UserID, rec.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, domain.ErrRecordNotFound
	}
	return &recs[0], nil
}

// Insert appends a row without relying on the unique index.
func (s *Store) Insert(ctx context.Context, rec *domain.CancellationRecord) (*domain.CancellationRecord, error) {
	flowData, err := json.Marshal(rec.FlowData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode flow data: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cancellations (
			user_id, subscription_id, downsell_variant,
			got_job, cancel_reason, company_visa_support,
			accepted_downsell, final_decision, flow_data,
			current_step, completed, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.SubscriptionID, string(rec.Variant),
		rec.GotJob, rec.CancelReason, rec.CompanyVisaSupport,
		rec.AcceptedDownsell, rec.FinalDecision, flowData,
		rec.CurrentStep, rec.Completed, encodeTime(now), encodeTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert cancellation: %w", err)
	}

	cp := *rec
	cp.CreatedAt = now
	cp.UpdatedAt = now
	return &cp, nil
}

// Fetch returns the records for a user, most recently updated first.
func (s *Store) Fetch(ctx context.Context, userID, subscriptionID string) ([]domain.CancellationRecord, error) {
	query := `
		SELECT user_id, subscription_id, downsell_variant,
			got_job, cancel_reason, company_visa_support,
			accepted_downsell, final_decision, flow_data,
			current_step, completed, created_at, updated_at
		FROM cancellations
		WHERE user_id = ?`
	args := []any{userID}
	if subscriptionID != "" {
		query += ` AND subscription_id = ?`
		args = append(args, subscriptionID)
	}
	query += ` ORDER BY updated_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cancellations: %w", err)
	}
	defer rows.Close()

	var out []domain.CancellationRecord
	for rows.Next() {
		var (
			rec       domain.CancellationRecord
			variant   string
			flowData  []byte
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(
			&rec.UserID, &rec.SubscriptionID, &variant,
			&rec.GotJob, &rec.CancelReason, &rec.CompanyVisaSupport,
			&rec.AcceptedDownsell, &rec.FinalDecision, &flowData,
			&rec.CurrentStep, &rec.Completed, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cancellation: %w", err)
		}
		rec.Variant = domain.Variant(variant)
		if len(flowData) > 0 {
			if err := json.Unmarshal(flowData, &rec.FlowData); err != nil {
				return nil, fmt.Errorf("failed to decode flow data: %w", err)
			}
		}
		rec.CreatedAt = decodeTime(createdAt)
		rec.UpdatedAt = decodeTime(updatedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveSubscription creates or replaces a subscription row.
func (s *Store) SaveSubscription(ctx context.Context, sub *domain.Subscription) error {
	now := time.Now().UTC()
	created := sub.CreatedAt
	if created.IsZero() {
		created = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (
			id, user_id, monthly_price, status,
			offer_percent, offer_accepted, offer_accepted_at, offer_declined_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			monthly_price = excluded.monthly_price,
			status = excluded.status,
			offer_percent = excluded.offer_percent,
			offer_accepted = excluded.offer_accepted,
			offer_accepted_at = excluded.offer_accepted_at,
			offer_declined_at = excluded.offer_declined_at,
			updated_at = excluded.updated_at`,
		sub.ID, sub.UserID, sub.MonthlyPrice, sub.Status,
		sub.OfferPercent, sub.OfferAccepted,
		encodeNullableTime(sub.OfferAcceptedAt), encodeNullableTime(sub.OfferDeclinedAt),
		encodeTime(created), encodeTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func encodeNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

// UpdateOffer applies an offer decision to the matching subscription.
func (s *Store) UpdateOffer(ctx context.Context, subscriptionID, userID string, upd domain.OfferUpdate) (*domain.Subscription, error) {
	now := time.Now().UTC()
	var acceptedAt, declinedAt any
	if upd.Accepted {
		acceptedAt = encodeTime(now)
	} else {
		declinedAt = encodeTime(now)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET offer_percent = ?, offer_accepted = ?,
			offer_accepted_at = ?, offer_declined_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		upd.Percent, upd.Accepted, acceptedAt, declinedAt, encodeTime(now),
		subscriptionID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update offer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, domain.ErrSubscriptionNotFound
	}

	subs, err := s.Subscriptions(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, domain.ErrSubscriptionNotFound
	}
	return &subs[0], nil
}

// Subscriptions returns the subscriptions of a user.
func (s *Store) Subscriptions(ctx context.Context, userID, subscriptionID string) ([]domain.Subscription, error) {
	query := `
		SELECT id, user_id, monthly_price, status,
			offer_percent, offer_accepted, offer_accepted_at, offer_declined_at,
			created_at, updated_at
		FROM subscriptions
		WHERE user_id = ?`
	args := []any{userID}
	if subscriptionID != "" {
		query += ` AND id = ?`
		args = append(args, subscriptionID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscription
	for rows.Next() {
		var (
			sub                    domain.Subscription
			acceptedAt, declinedAt sql.NullString
			createdAt, updatedAt   string
		)
		if err := rows.Scan(
			&sub.ID, &sub.UserID, &sub.MonthlyPrice, &sub.Status,
			&sub.OfferPercent, &sub.OfferAccepted, &acceptedAt, &declinedAt,
			&createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		if acceptedAt.Valid {
			t := decodeTime(acceptedAt.String)
			sub.OfferAcceptedAt = &t
		}
		if declinedAt.Valid {
			t := decodeTime(declinedAt.String)
			sub.OfferDeclinedAt = &t
		}
		sub.CreatedAt = decodeTime(createdAt)
		sub.UpdatedAt = decodeTime(updatedAt)
		out = append(out, sub)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return errors.New("store already closed")
	}
	err := s.db.Close()
	s.db = nil
	return err
}
