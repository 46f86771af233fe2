// Package runtime implements the flow-resolution core: per-step validation
// and the branch resolver over an immutable step graph. It holds no session
// state; callers pass the FlowState they own.
package runtime

import (
	"log/slog"

	"github.com/aretw0/offramp/internal/logging"
	"github.com/aretw0/offramp/internal/metrics"
	"github.com/aretw0/offramp/pkg/graph"
)

// Engine evaluates validation and navigation against one shared graph.
type Engine struct {
	graph   *graph.StepGraph
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics enables transition and validation counters.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an Engine over the given graph.
func NewEngine(g *graph.StepGraph, opts ...EngineOption) *Engine {
	e := &Engine{
		graph:  g,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the engine's step graph.
func (e *Engine) Graph() *graph.StepGraph {
	return e.graph
}
