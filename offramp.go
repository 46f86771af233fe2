package offramp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/offramp/internal/logging"
	"github.com/aretw0/offramp/internal/metrics"
	"github.com/aretw0/offramp/internal/variant"
	"github.com/aretw0/offramp/pkg/adapters/httpapi"
	"github.com/aretw0/offramp/pkg/adapters/memory"
	"github.com/aretw0/offramp/pkg/domain"
	"github.com/aretw0/offramp/pkg/graph"
	"github.com/aretw0/offramp/pkg/ports"
	"github.com/aretw0/offramp/pkg/session"
)

// VariantStrategy selects how first-time A/B cohorts are generated.
type VariantStrategy string

const (
	// VariantDeterministic derives the cohort from a stable hash of the user
	// id. This is the default and the system of record.
	VariantDeterministic VariantStrategy = "deterministic"
	// VariantSecure draws first-time cohorts from crypto/rand.
	VariantSecure VariantStrategy = "secure"
)

// Engine is the high-level entry point for the offramp library. It wires the
// step graph, the variant assigner, the persistence gateway and the session
// manager behind one constructor.
type Engine struct {
	graph    *graph.StepGraph
	store    ports.Store
	logger   *slog.Logger
	registry *prometheus.Registry
	strategy VariantStrategy
	manager  *session.Manager
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithGraph replaces the built-in cancellation flow with a custom graph.
func WithGraph(g *graph.StepGraph) Option {
	return func(e *Engine) {
		e.graph = g
	}
}

// WithStore injects a storage backend. Defaults to the in-memory store.
func WithStore(store ports.Store) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithVariantStrategy selects the first-time cohort generation strategy.
func WithVariantStrategy(s VariantStrategy) Option {
	return func(e *Engine) {
		e.strategy = s
	}
}

// WithMetrics registers the engine's Prometheus collectors on a fresh
// registry, exposed by Handler on /metrics.
func WithMetrics() Option {
	return func(e *Engine) {
		e.registry = prometheus.NewRegistry()
	}
}

// New creates an Engine. The graph is validated before anything is wired; a
// dangling reference surfaces here, not mid-session.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		strategy: VariantDeterministic,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.graph == nil {
		e.graph = graph.Cancellation()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if err := e.graph.Validate(); err != nil {
		return nil, err
	}

	var mx *metrics.Metrics
	if e.registry != nil {
		mx = metrics.New(e.registry)
	}
	e.manager = session.NewManager(e.graph, e.store,
		session.WithLogger(e.logger),
		session.WithMetrics(mx),
		session.WithVariantStrategy(variant.Strategy(e.strategy)))
	return e, nil
}

// Graph returns the validated step graph.
func (e *Engine) Graph() *graph.StepGraph {
	return e.graph
}

// Store returns the storage backend.
func (e *Engine) Store() ports.Store {
	return e.store
}

// Sessions returns the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.manager
}

// OpenSession starts (or resumes) a flow session for a user and subscription.
func (e *Engine) OpenSession(ctx context.Context, userID, subscriptionID string) (*session.Session, error) {
	return e.manager.Open(ctx, userID, subscriptionID)
}

// Variant returns the pinned cohort for a user without opening a session.
func (e *Engine) Variant(ctx context.Context, userID, subscriptionID string) (domain.Variant, error) {
	a := variant.NewAssigner(e.store,
		variant.WithStrategy(variant.Strategy(e.strategy)),
		variant.WithLogger(e.logger))
	return a.PinnedAssign(ctx, userID, subscriptionID)
}

// Handler returns the HTTP API over this engine's store.
func (e *Engine) Handler() http.Handler {
	opts := []httpapi.Option{httpapi.WithLogger(e.logger)}
	if e.registry != nil {
		opts = append(opts, httpapi.WithMetricsRegistry(e.registry))
	}
	return httpapi.NewHandler(e.manager.Gateway(), e.store, opts...)
}
