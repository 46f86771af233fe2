// Package httpapi exposes the cancellation records and subscription offers
// over HTTP. It is a thin adapter: request decoding, field presence checks
// and status mapping live here; all semantics stay in the gateway and stores.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/offramp/internal/gateway"
	"github.com/aretw0/offramp/internal/logging"
	"github.com/aretw0/offramp/pkg/domain"
	"github.com/aretw0/offramp/pkg/ports"
)

// DefaultOfferPercent applies when an offer update does not carry a percent.
const DefaultOfferPercent = 50

// Server holds the adapter dependencies.
type Server struct {
	gateway       *gateway.Gateway
	subscriptions ports.SubscriptionStore
	logger        *slog.Logger
	registry      *prometheus.Registry
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsRegistry serves the given registry on /metrics.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// NewHandler builds the HTTP handler.
func NewHandler(gw *gateway.Gateway, subs ports.SubscriptionStore, opts ...Option) http.Handler {
	s := &Server{
		gateway:       gw,
		subscriptions: subs,
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/subscription", func(r chi.Router) {
		r.Post("/{subscriptionID}/cancellation", s.saveCancellation)
		r.Get("/{subscriptionID}/cancellation", s.getCancellations)
		// Unfiltered per-user fetch; subscriptionId moves to the query string.
		r.Get("/cancellation", s.getCancellations)
		r.Put("/offer", s.updateOffer)
		r.Get("/offer", s.getOffer)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// apiError is the structured error body every failure path returns.
type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, apiError{Message: message, Code: code})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// cancellationRequest mirrors the persisted record with client-side field
// names. The core business fields travel alongside the freeform flow data,
// like the hybrid storage schema they map to; omitted ones are derived from
// flowData by the gateway.
type cancellationRequest struct {
	UserID      string         `json:"userId"`
	Variant     domain.Variant `json:"variant"`
	FlowData    map[string]any `json:"flowData"`
	CurrentStep int            `json:"currentStep"`
	Completed   bool           `json:"completed"`

	GotJob             string `json:"gotJob"`
	CancelReason       string `json:"cancelReason"`
	CompanyVisaSupport string `json:"companyVisaSupport"`
	AcceptedDownsell   bool   `json:"acceptedDownsell"`
	FinalDecision      string `json:"finalDecision"`
}

func (s *Server) saveCancellation(w http.ResponseWriter, r *http.Request) {
	subscriptionID := chi.URLParam(r, "subscriptionID")

	var body cancellationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}

	switch {
	case subscriptionID == "":
		writeError(w, http.StatusBadRequest, "subscriptionId is required", "missing_field")
		return
	case body.UserID == "":
		writeError(w, http.StatusBadRequest, "userId is required", "missing_field")
		return
	case !body.Variant.Valid():
		writeError(w, http.StatusBadRequest, "variant must be A or B", "missing_field")
		return
	}

	flowData := body.FlowData
	if flowData == nil {
		flowData = map[string]any{}
	}
	rec, err := s.gateway.Save(r.Context(), &domain.CancellationRecord{
		UserID:             body.UserID,
		SubscriptionID:     subscriptionID,
		Variant:            body.Variant,
		FlowData:           flowData,
		CurrentStep:        body.CurrentStep,
		Completed:          body.Completed,
		GotJob:             body.GotJob,
		CancelReason:       body.CancelReason,
		CompanyVisaSupport: body.CompanyVisaSupport,
		AcceptedDownsell:   body.AcceptedDownsell,
		FinalDecision:      body.FinalDecision,
	})
	if err != nil {
		s.logger.Error("failed to save cancellation", "error", err,
			"user_id", body.UserID, "subscription_id", subscriptionID)
		writeError(w, http.StatusInternalServerError, "failed to save cancellation", "storage_error")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) getCancellations(w http.ResponseWriter, r *http.Request) {
	subscriptionID := chi.URLParam(r, "subscriptionID")
	if subscriptionID == "" {
		subscriptionID = r.URL.Query().Get("subscriptionId")
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required", "missing_field")
		return
	}

	recs, err := s.gateway.Fetch(r.Context(), userID, subscriptionID)
	if err != nil {
		s.logger.Error("failed to fetch cancellations", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to fetch cancellations", "storage_error")
		return
	}
	if recs == nil {
		recs = []domain.CancellationRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

type offerRequest struct {
	UserID         string `json:"userId"`
	SubscriptionID string `json:"subscriptionId"`
	Percent        *int   `json:"percent"`
	Accepted       bool   `json:"accepted"`
}

func (s *Server) updateOffer(w http.ResponseWriter, r *http.Request) {
	var body offerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}
	if body.UserID == "" || body.SubscriptionID == "" {
		writeError(w, http.StatusBadRequest, "userId and subscriptionId are required", "missing_field")
		return
	}

	percent := DefaultOfferPercent
	if body.Percent != nil {
		percent = *body.Percent
	}
	if percent < 1 || percent > 100 {
		writeError(w, http.StatusBadRequest, "percent must be between 1 and 100", "invalid_percent")
		return
	}

	sub, err := s.subscriptions.UpdateOffer(r.Context(), body.SubscriptionID, body.UserID,
		domain.OfferUpdate{Percent: percent, Accepted: body.Accepted})
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		writeError(w, http.StatusNotFound, "subscription not found", "not_found")
		return
	}
	if err != nil {
		s.logger.Error("failed to update offer", "error", err, "subscription_id", body.SubscriptionID)
		writeError(w, http.StatusInternalServerError, "failed to update offer", "storage_error")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) getOffer(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	subscriptionID := r.URL.Query().Get("subscriptionId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required", "missing_field")
		return
	}

	subs, err := s.subscriptions.Subscriptions(r.Context(), userID, subscriptionID)
	if err != nil {
		s.logger.Error("failed to fetch subscriptions", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to fetch subscriptions", "storage_error")
		return
	}
	if len(subs) == 0 {
		writeError(w, http.StatusNotFound, "subscription not found", "not_found")
		return
	}
	writeJSON(w, http.StatusOK, subs)
}
