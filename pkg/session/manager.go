package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/aretw0/offramp/internal/gateway"
	"github.com/aretw0/offramp/internal/logging"
	"github.com/aretw0/offramp/internal/metrics"
	"github.com/aretw0/offramp/internal/runtime"
	"github.com/aretw0/offramp/internal/variant"
	"github.com/aretw0/offramp/pkg/domain"
	"github.com/aretw0/offramp/pkg/graph"
	"github.com/aretw0/offramp/pkg/ports"
)

// ErrSessionNotFound is returned when a session id resolves to nothing.
var ErrSessionNotFound = errors.New("session not found")

// Manager creates and indexes live sessions. It wires the shared engine,
// assigner and gateway into each one.
type Manager struct {
	engine   *runtime.Engine
	assigner *variant.Assigner
	gateway  *gateway.Gateway
	logger   *slog.Logger
	metrics  *metrics.Metrics
	strategy variant.Strategy

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets the logger passed down to every session.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithVariantStrategy selects how first-time cohorts are generated.
func WithVariantStrategy(s variant.Strategy) Option {
	return func(m *Manager) {
		m.strategy = s
	}
}

// WithMetrics enables counters on the engine, assigner and gateway.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mx
	}
}

// NewManager creates a Manager over the given graph and store.
func NewManager(g *graph.StepGraph, store ports.CancellationStore, opts ...Option) *Manager {
	m := &Manager{
		logger:   logging.NewNop(),
		sessions: make(map[string]*Session),
		strategy: variant.StrategyDeterministic,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.engine = runtime.NewEngine(g, runtime.WithLogger(m.logger), runtime.WithMetrics(m.metrics))
	m.assigner = variant.NewAssigner(store,
		variant.WithStrategy(m.strategy),
		variant.WithLogger(m.logger),
		variant.WithMetrics(m.metrics))
	m.gateway = gateway.New(store,
		gateway.WithLogger(m.logger),
		gateway.WithMetrics(m.metrics))
	return m
}

// Engine returns the shared flow engine.
func (m *Manager) Engine() *runtime.Engine {
	return m.engine
}

// Gateway returns the shared persistence gateway.
func (m *Manager) Gateway() *gateway.Gateway {
	return m.gateway
}

// Open starts (or resumes) a session for a (user, subscription) pair. The
// cohort is pinned through the guarded read-before-write path, and any
// previously persisted progress for the pair is restored so a reopened flow
// continues where it left off.
func (m *Manager) Open(ctx context.Context, userID, subscriptionID string) (*Session, error) {
	if userID == "" || subscriptionID == "" {
		return nil, fmt.Errorf("user id and subscription id are required")
	}

	v, err := m.assigner.PinnedAssign(ctx, userID, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	state := domain.NewFlowState(v)
	rec, err := m.gateway.Latest(ctx, userID, subscriptionID)
	switch {
	case err == nil && !rec.Completed:
		// Resume an interrupted walk. A completed record means the flow ended;
		// reopening starts fresh (same pinned cohort) and a new terminal
		// commit replaces the stored row.
		m.restore(state, rec)
	case err != nil && !errors.Is(err, domain.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to load persisted progress: %w", err)
	}

	s := &Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		SubscriptionID: subscriptionID,
		engine:         m.engine,
		gateway:        m.gateway,
		logger:         m.logger,
		state:          state,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("session opened",
		"session_id", s.ID,
		"user_id", userID,
		"subscription_id", subscriptionID,
		"variant", v,
		"resumed", len(state.Answers) > 0)
	return s, nil
}

// Get returns a live session by id.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close drops a session from the index. The durable record, if any, stays.
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// List returns the ids of the live sessions.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	return out
}

// restore maps a persisted flat answer map back onto the nested state. The
// graph tells us which step every question (and composite follow-up key)
// belongs to; unknown keys are dropped.
func (m *Manager) restore(state *domain.FlowState, rec *domain.CancellationRecord) {
	for _, step := range m.engine.Graph().Steps() {
		if step.BranchKey != "" {
			if v, ok := stringValue(rec.FlowData[step.BranchKey]); ok {
				state.SetAnswer(step.ID, step.BranchKey, v)
			}
		}
		for _, q := range step.Questions {
			if v, ok := stringValue(rec.FlowData[q.ID]); ok {
				state.SetAnswer(step.ID, q.ID, v)
			}
			for _, fu := range q.FollowUps {
				key := domain.CompositeKey(q.ID, fu.Trigger)
				if v, ok := stringValue(rec.FlowData[key]); ok {
					state.SetAnswer(step.ID, key, v)
				}
			}
		}
	}

	if rec.CurrentStep > 0 && rec.CurrentStep <= m.engine.Graph().Len() {
		state.Ordinal = rec.CurrentStep - 1
	}
	state.Completed = rec.Completed
	state.AcceptedOffer = rec.AcceptedDownsell
	state.FinalDecision = rec.FinalDecision
}

func stringValue(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
