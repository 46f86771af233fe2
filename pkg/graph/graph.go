// Package graph holds the immutable declarative step graph and its
// integrity checks. A graph is constructed once at process start, validated,
// and never mutated afterwards; every session shares the same instance.
package graph

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/offramp/pkg/domain"
)

// StepGraph is an indexed, ordered collection of steps. The declaration
// order defines the flattened ordinal space the Navigator points into.
type StepGraph struct {
	steps []domain.Step
	index map[string]int
}

// New builds a graph from steps in declaration order. Duplicate ids are a
// configuration error.
func New(steps []domain.Step) (*StepGraph, error) {
	g := &StepGraph{
		steps: steps,
		index: make(map[string]int, len(steps)),
	}
	for i, s := range steps {
		if s.ID == "" {
			return nil, &domain.ConfigurationError{StepID: fmt.Sprintf("#%d", i), Detail: "step has no id"}
		}
		if _, dup := g.index[s.ID]; dup {
			return nil, &domain.ConfigurationError{StepID: s.ID, Detail: "duplicate step id"}
		}
		g.index[s.ID] = i
	}
	if len(g.steps) == 0 {
		return nil, &domain.ConfigurationError{StepID: "", Detail: "graph has no steps"}
	}
	return g, nil
}

// Load parses a YAML step list and builds a graph from it.
func Load(r io.Reader) (*StepGraph, error) {
	var steps []domain.Step
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&steps); err != nil {
		return nil, fmt.Errorf("failed to parse graph: %w", err)
	}
	return New(steps)
}

// Len returns the number of declared steps.
func (g *StepGraph) Len() int {
	return len(g.steps)
}

// EntryID returns the id of the first declared step (the decision step).
func (g *StepGraph) EntryID() string {
	return g.steps[0].ID
}

// Step returns the step with the given id.
func (g *StepGraph) Step(id string) (*domain.Step, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return &g.steps[i], true
}

// At returns the step at the given ordinal position.
func (g *StepGraph) At(ordinal int) (*domain.Step, bool) {
	if ordinal < 0 || ordinal >= len(g.steps) {
		return nil, false
	}
	return &g.steps[ordinal], true
}

// OrdinalOf returns the declaration index of a step id.
func (g *StepGraph) OrdinalOf(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Steps returns the steps in declaration order. Callers must not mutate.
func (g *StepGraph) Steps() []domain.Step {
	return g.steps
}

// Validate checks referential integrity: every button and branch target must
// resolve to an existing step, declared predecessors must exist, branch
// conditions must reference real questions, follow-up triggers must name
// declared options, and button gates must reference declared questions.
// All violations are collected and returned as one AggregateError.
func (g *StepGraph) Validate() error {
	var errs []error

	fail := func(stepID, format string, args ...any) {
		errs = append(errs, &domain.ConfigurationError{
			StepID: stepID,
			Detail: fmt.Sprintf(format, args...),
		})
	}

	for i := range g.steps {
		s := &g.steps[i]

		if s.PrevStepID != "" {
			if _, ok := g.index[s.PrevStepID]; !ok {
				fail(s.ID, "predecessor %q does not exist", s.PrevStepID)
			}
		}

		buttons := s.Buttons
		if s.OfferButton != nil {
			buttons = append(append([]domain.Button{}, buttons...), *s.OfferButton)
		}
		for _, b := range buttons {
			switch b.Action {
			case domain.ActionAdvance, domain.ActionBranch:
				if b.TargetStepID == "" {
					fail(s.ID, "button %q has no target", b.ID)
				} else if _, ok := g.index[b.TargetStepID]; !ok {
					fail(s.ID, "button %q targets unknown step %q", b.ID, b.TargetStepID)
				}
			case domain.ActionRetreat, domain.ActionClose:
				// No target required.
			default:
				fail(s.ID, "button %q has unknown action %q", b.ID, b.Action)
			}
			for _, qid := range b.RequiresAnswers {
				if s.Question(qid) == nil {
					fail(s.ID, "button %q requires unknown question %q", b.ID, qid)
				}
			}
		}

		for _, cb := range s.ConditionalBranches {
			if _, ok := g.index[cb.TargetStepID]; !ok {
				fail(s.ID, "branch targets unknown step %q", cb.TargetStepID)
			}
			src, ok := g.Step(cb.Condition.StepID)
			if !ok {
				fail(s.ID, "branch condition references unknown step %q", cb.Condition.StepID)
				continue
			}
			if src.Question(cb.Condition.QuestionID) == nil && src.BranchKey != cb.Condition.QuestionID {
				fail(s.ID, "branch condition references unknown question %q on step %q",
					cb.Condition.QuestionID, cb.Condition.StepID)
			}
		}

		for qi := range s.Questions {
			q := &s.Questions[qi]
			for _, fu := range q.FollowUps {
				if !q.HasOption(fu.Trigger) {
					fail(s.ID, "question %q declares follow-up for unknown option %q", q.ID, fu.Trigger)
				}
			}
		}
	}

	if len(errs) > 0 {
		return &domain.AggregateError{Errors: errs}
	}
	return nil
}
