package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/offramp/internal/gateway"
	"github.com/aretw0/offramp/internal/runtime"
	"github.com/aretw0/offramp/pkg/domain"
)

// Session is one user's walk through the flow. All methods are safe for
// concurrent use; the FlowState inside is never handed out directly.
type Session struct {
	ID             string
	UserID         string
	SubscriptionID string

	engine  *runtime.Engine
	gateway *gateway.Gateway
	logger  *slog.Logger

	mu    sync.Mutex
	state *domain.FlowState
}

// Current returns the step the session is parked on.
func (s *Session) Current() *domain.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	step, _ := s.engine.Graph().At(s.state.Ordinal)
	return step
}

// State returns a deep copy of the flow state for inspection or rendering.
func (s *Session) State() *domain.FlowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Variant returns the pinned cohort.
func (s *Session) Variant() domain.Variant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Variant
}

// Progress returns the derived step counter for the current trajectory.
func (s *Session) Progress() runtime.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Progress(s.state)
}

// SetAnswer records an answer on the current step. Changing a select answer
// drops the follow-up answers of the other options, so a stale nested answer
// never survives its trigger. The field's own error is cleared; full
// validation runs on the next Advance.
func (s *Session) SetAnswer(questionID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step, ok := s.engine.Graph().At(s.state.Ordinal)
	if !ok {
		return &domain.ConfigurationError{StepID: fmt.Sprintf("#%d", s.state.Ordinal), Detail: "no step at current position"}
	}

	if q := step.Question(questionID); q != nil && q.Type == domain.QuestionSelect {
		for _, fu := range q.FollowUps {
			if fu.Trigger != value {
				key := domain.CompositeKey(q.ID, fu.Trigger)
				s.state.ClearAnswer(step.ID, key)
				delete(s.state.Errors, key)
			}
		}
	}

	s.state.SetAnswer(step.ID, questionID, value)
	delete(s.state.Errors, questionID)
	return nil
}

// Answer returns the recorded answer for a question on the current step.
func (s *Session) Answer(questionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step, ok := s.engine.Graph().At(s.state.Ordinal)
	if !ok {
		return "", false
	}
	return s.state.Answer(step.ID, questionID)
}

// Errors returns the validation errors of the last failed Advance.
func (s *Session) Errors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.state.Errors))
	for k, v := range s.state.Errors {
		out[k] = v
	}
	return out
}

// Completed reports whether the flow has reached its terminal commit.
func (s *Session) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Completed
}

// Advance presses a button on the current step. Validation gates the move:
// on failure the position is unchanged and the field errors are recorded on
// the state and returned as an AggregateError of ValidationErrors. Close
// buttons finalize the flow and commit the durable record.
func (s *Session) Advance(ctx context.Context, buttonID string) (*domain.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	step, ok := s.engine.Graph().At(s.state.Ordinal)
	if !ok {
		return nil, &domain.ConfigurationError{StepID: fmt.Sprintf("#%d", s.state.Ordinal), Detail: "no step at current position"}
	}
	btn := step.Button(buttonID)
	if btn == nil {
		return step, &domain.ConfigurationError{StepID: step.ID, Detail: fmt.Sprintf("unknown button %q", buttonID)}
	}

	switch btn.Action {
	case domain.ActionRetreat:
		s.engine.Retreat(s.state)
		cur, _ := s.engine.Graph().At(s.state.Ordinal)
		return cur, nil

	case domain.ActionClose:
		if err := s.complete(ctx); err != nil {
			return step, err
		}
		return step, nil
	}

	// A decision button doubles as the answer to the step's branch question.
	if btn.Action == domain.ActionBranch && step.BranchKey != "" && btn.Value != "" {
		s.state.SetAnswer(step.ID, step.BranchKey, btn.Value)
	}

	if errs := s.engine.ValidateForButton(step, btn, s.state); len(errs) > 0 {
		s.state.Errors = errs
		return step, validationError(errs)
	}
	s.state.Errors = map[string]string{}

	target, err := s.engine.ResolveNext(s.state, step, btn)
	if err != nil {
		return step, err
	}

	// Taking the offer shortcut keeps the subscription.
	if step.OfferButton != nil && btn.ID == step.OfferButton.ID {
		s.state.AcceptedOffer = true
		s.state.FinalDecision = domain.DecisionKept
		s.logger.Info("downsell offer accepted", "user_id", s.UserID, "subscription_id", s.SubscriptionID)
	}

	ord, _ := s.engine.Graph().OrdinalOf(target)
	s.state.Ordinal = ord
	cur, _ := s.engine.Graph().At(ord)
	return cur, nil
}

// Retreat moves back to the declared predecessor of the current step.
func (s *Session) Retreat() *domain.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Retreat(s.state)
	step, _ := s.engine.Graph().At(s.state.Ordinal)
	return step
}

// complete finalizes the decision and commits the durable record. The live
// state only takes the terminal flags once the write lands; a failed commit
// leaves the session retryable.
func (s *Session) complete(ctx context.Context) error {
	if s.state.Completed {
		return nil
	}

	final := s.state.Clone()
	final.Completed = true
	if final.FinalDecision == "" {
		if final.AcceptedOffer {
			final.FinalDecision = domain.DecisionKept
		} else {
			final.FinalDecision = domain.DecisionCancelled
		}
	}

	if _, err := s.gateway.Commit(ctx, s.UserID, s.SubscriptionID, final); err != nil {
		return err
	}
	s.state = final
	return nil
}

// validationError folds a field error map into one AggregateError with
// deterministic ordering.
func validationError(errs map[string]string) error {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	agg := &domain.AggregateError{}
	for _, k := range keys {
		agg.Errors = append(agg.Errors, &domain.ValidationError{Key: k, Reason: errs[k]})
	}
	return agg
}
