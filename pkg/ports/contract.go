package ports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/offramp/pkg/domain"
)

// RunStoreContract is a reusable suite that verifies an adapter complies
// with the Store contract. Adapter test files call it with a fresh backend.
func RunStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("Fetch_Empty", func(t *testing.T) {
		recs, err := store.Fetch(ctx, "nobody", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(recs) != 0 {
			t.Errorf("expected no records, got %d", len(recs))
		}
	})

	t.Run("Upsert_Idempotent", func(t *testing.T) {
		rec := &domain.CancellationRecord{
			UserID:         "user-1",
			SubscriptionID: "sub-1",
			Variant:        domain.VariantA,
			FlowData:       map[string]any{"gotJob": "yes"},
			CurrentStep:    1,
		}
		if _, err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("first upsert failed: %v", err)
		}

		rec.Completed = true
		rec.FinalDecision = domain.DecisionCancelled
		if _, err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("second upsert failed: %v", err)
		}

		recs, err := store.Fetch(ctx, "user-1", "sub-1")
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if len(recs) != 1 {
			t.Fatalf("expected exactly one record, got %d", len(recs))
		}
		if !recs[0].Completed || recs[0].FinalDecision != domain.DecisionCancelled {
			t.Errorf("second upsert did not replace the record: %+v", recs[0])
		}
		if recs[0].Variant != domain.VariantA {
			t.Errorf("variant not preserved: %q", recs[0].Variant)
		}
	})

	t.Run("Fetch_ByUser", func(t *testing.T) {
		a := &domain.CancellationRecord{UserID: "user-2", SubscriptionID: "sub-a", Variant: domain.VariantB}
		if _, err := store.Upsert(ctx, a); err != nil {
			t.Fatalf("upsert a: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
		b := &domain.CancellationRecord{UserID: "user-2", SubscriptionID: "sub-b", Variant: domain.VariantB}
		if _, err := store.Upsert(ctx, b); err != nil {
			t.Fatalf("upsert b: %v", err)
		}

		recs, err := store.Fetch(ctx, "user-2", "")
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if len(recs) != 2 {
			t.Fatalf("expected 2 records, got %d", len(recs))
		}
		if recs[0].SubscriptionID != "sub-b" {
			t.Errorf("expected most recent record first, got %q", recs[0].SubscriptionID)
		}

		filtered, err := store.Fetch(ctx, "user-2", "sub-a")
		if err != nil {
			t.Fatalf("filtered fetch failed: %v", err)
		}
		if len(filtered) != 1 || filtered[0].SubscriptionID != "sub-a" {
			t.Errorf("subscription filter not applied: %+v", filtered)
		}
	})

	t.Run("Offer_Update", func(t *testing.T) {
		sub := &domain.Subscription{
			ID:           "sub-offer",
			UserID:       "user-3",
			MonthlyPrice: 2500,
			Status:       "active",
		}
		if err := store.SaveSubscription(ctx, sub); err != nil {
			t.Fatalf("save subscription: %v", err)
		}

		updated, err := store.UpdateOffer(ctx, "sub-offer", "user-3", domain.OfferUpdate{Percent: 50, Accepted: true})
		if err != nil {
			t.Fatalf("update offer: %v", err)
		}
		if !updated.OfferAccepted || updated.OfferPercent != 50 {
			t.Errorf("offer not applied: %+v", updated)
		}
		if updated.OfferAcceptedAt == nil || updated.OfferDeclinedAt != nil {
			t.Errorf("accepted timestamps wrong: %+v", updated)
		}

		declined, err := store.UpdateOffer(ctx, "sub-offer", "user-3", domain.OfferUpdate{Percent: 50, Accepted: false})
		if err != nil {
			t.Fatalf("decline offer: %v", err)
		}
		if declined.OfferAcceptedAt != nil || declined.OfferDeclinedAt == nil {
			t.Errorf("declined timestamps wrong: %+v", declined)
		}
	})

	t.Run("Offer_NotFound", func(t *testing.T) {
		_, err := store.UpdateOffer(ctx, "missing", "user-3", domain.OfferUpdate{Percent: 50, Accepted: true})
		if !errors.Is(err, domain.ErrSubscriptionNotFound) {
			t.Errorf("expected ErrSubscriptionNotFound, got %v", err)
		}
	})
}
