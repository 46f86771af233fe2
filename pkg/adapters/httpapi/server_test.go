package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/offramp/internal/gateway"
	"github.com/aretw0/offramp/pkg/adapters/httpapi"
	"github.com/aretw0/offramp/pkg/adapters/memory"
	"github.com/aretw0/offramp/pkg/domain"
)

func newTestServer(t *testing.T, opts ...memory.Option) (http.Handler, *memory.Store) {
	t.Helper()
	store := memory.NewStore(opts...)
	return httpapi.NewHandler(gateway.New(store), store), store
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSaveCancellation(t *testing.T) {
	h, store := newTestServer(t)

	rr := do(t, h, http.MethodPost, "/subscription/sub-1/cancellation", map[string]any{
		"userId":      "user-1",
		"variant":     "B",
		"flowData":    map[string]any{"gotJob": "no", "cancelReason": "too-expensive"},
		"currentStep": 3,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var rec domain.CancellationRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, domain.VariantB, rec.Variant)

	recs, err := store.Fetch(context.Background(), "user-1", "sub-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "no", recs[0].FlowData["gotJob"])

	// Same key again replaces, not duplicates.
	rr = do(t, h, http.MethodPost, "/subscription/sub-1/cancellation", map[string]any{
		"userId":   "user-1",
		"variant":  "B",
		"flowData": map[string]any{"gotJob": "yes"},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	recs, err = store.Fetch(context.Background(), "user-1", "sub-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "yes", recs[0].FlowData["gotJob"])
}

func TestSaveCancellation_RejectsMissingFields(t *testing.T) {
	h, _ := newTestServer(t)

	for name, body := range map[string]map[string]any{
		"missing user":    {"variant": "A"},
		"missing variant": {"userId": "user-1"},
		"bad variant":     {"userId": "user-1", "variant": "C"},
	} {
		t.Run(name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/subscription/sub-1/cancellation", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)

			var apiErr struct {
				Message string `json:"message"`
				Code    string `json:"code"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &apiErr))
			assert.Equal(t, "missing_field", apiErr.Code)
		})
	}
}

func TestSaveCancellation_CoreFields(t *testing.T) {
	h, store := newTestServer(t)

	// The full client payload shape: core business fields travel alongside
	// the freeform flow data and land in their own columns.
	rr := do(t, h, http.MethodPost, "/subscription/sub-1/cancellation", map[string]any{
		"userId":             "user-1",
		"variant":            "B",
		"gotJob":             "no",
		"cancelReason":       "too-expensive",
		"companyVisaSupport": "yes",
		"acceptedDownsell":   true,
		"finalDecision":      "kept",
		"flowData":           map[string]any{"gotJob": "no"},
		"currentStep":        4,
		"completed":          true,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	recs, err := store.Fetch(context.Background(), "user-1", "sub-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "no", recs[0].GotJob)
	assert.Equal(t, "too-expensive", recs[0].CancelReason)
	assert.Equal(t, "yes", recs[0].CompanyVisaSupport)
	assert.True(t, recs[0].AcceptedDownsell)
	assert.Equal(t, "kept", recs[0].FinalDecision)
	assert.True(t, recs[0].Completed)
}

func TestSaveCancellation_DerivesCoreFieldsFromFlowData(t *testing.T) {
	h, store := newTestServer(t)

	rr := do(t, h, http.MethodPost, "/subscription/sub-1/cancellation", map[string]any{
		"userId":  "user-1",
		"variant": "A",
		"flowData": map[string]any{
			"gotJob":             "yes",
			"cancelReason":       "other",
			"companyVisaSupport": "no",
		},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	recs, err := store.Fetch(context.Background(), "user-1", "sub-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "yes", recs[0].GotJob)
	assert.Equal(t, "other", recs[0].CancelReason)
	assert.Equal(t, "no", recs[0].CompanyVisaSupport)
}

func TestSaveCancellation_InsertFallback(t *testing.T) {
	h, store := newTestServer(t, memory.WithoutUniqueIndex())

	rr := do(t, h, http.MethodPost, "/subscription/sub-1/cancellation", map[string]any{
		"userId":  "user-1",
		"variant": "A",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	recs, err := store.Fetch(context.Background(), "user-1", "sub-1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestGetCancellations(t *testing.T) {
	h, store := newTestServer(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, &domain.CancellationRecord{
		UserID: "user-1", SubscriptionID: "sub-1", Variant: domain.VariantA,
	})
	require.NoError(t, err)

	rr := do(t, h, http.MethodGet, "/subscription/sub-1/cancellation?userId=user-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var recs []domain.CancellationRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	assert.Len(t, recs, 1)

	rr = do(t, h, http.MethodGet, "/subscription/sub-1/cancellation?userId=user-2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	assert.Empty(t, recs)

	rr = do(t, h, http.MethodGet, "/subscription/sub-1/cancellation", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetCancellations_ByUser(t *testing.T) {
	h, store := newTestServer(t)
	ctx := context.Background()

	for _, sub := range []string{"sub-1", "sub-2"} {
		_, err := store.Upsert(ctx, &domain.CancellationRecord{
			UserID: "user-1", SubscriptionID: sub, Variant: domain.VariantA,
		})
		require.NoError(t, err)
	}

	// No subscription filter: every record of the user.
	rr := do(t, h, http.MethodGet, "/subscription/cancellation?userId=user-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var recs []domain.CancellationRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	assert.Len(t, recs, 2)

	// The filter moves to the query string on the user-scoped route.
	rr = do(t, h, http.MethodGet, "/subscription/cancellation?userId=user-1&subscriptionId=sub-2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "sub-2", recs[0].SubscriptionID)

	rr = do(t, h, http.MethodGet, "/subscription/cancellation", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOfferLifecycle(t *testing.T) {
	h, store := newTestServer(t)
	require.NoError(t, store.SaveSubscription(context.Background(), &domain.Subscription{
		ID: "sub-1", UserID: "user-1", MonthlyPrice: 2500, Status: "active",
	}))

	// Percent defaults when omitted.
	rr := do(t, h, http.MethodPut, "/subscription/offer", map[string]any{
		"userId": "user-1", "subscriptionId": "sub-1", "accepted": true,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	var sub domain.Subscription
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sub))
	assert.Equal(t, httpapi.DefaultOfferPercent, sub.OfferPercent)
	assert.True(t, sub.OfferAccepted)
	assert.NotNil(t, sub.OfferAcceptedAt)
	assert.Nil(t, sub.OfferDeclinedAt)

	// Declining flips the timestamps.
	rr = do(t, h, http.MethodPut, "/subscription/offer", map[string]any{
		"userId": "user-1", "subscriptionId": "sub-1", "percent": 30, "accepted": false,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	sub = domain.Subscription{} // fields omitted via omitempty must not keep stale values
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sub))
	assert.Equal(t, 30, sub.OfferPercent)
	assert.Nil(t, sub.OfferAcceptedAt)
	assert.NotNil(t, sub.OfferDeclinedAt)

	rr = do(t, h, http.MethodGet, "/subscription/offer?userId=user-1&subscriptionId=sub-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodPut, "/subscription/offer", map[string]any{
		"userId": "user-1", "subscriptionId": "missing", "accepted": true,
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodPut, "/subscription/offer", map[string]any{
		"userId": "user-1", "subscriptionId": "sub-1", "percent": 0, "accepted": true,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/subscription/offer?userId=user-1&subscriptionId=other", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t)
	rr := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}
