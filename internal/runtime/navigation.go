package runtime

import (
	"github.com/aretw0/offramp/pkg/domain"
)

// ResolveNext computes the concrete target step for a pressed advance or
// branch button.
//
// The entry decision step takes a fast path: the pressed button's value is
// the recorded answer under the step's branch key, and a conditional branch
// matching that answer overrides the button's default target only for the
// offer-bearing cohort. Every other step resolves generically: the button's
// default target, overridden by the first conditional branch whose recorded
// answer matches, in declaration order.
func (e *Engine) ResolveNext(state *domain.FlowState, step *domain.Step, btn *domain.Button) (string, error) {
	if btn == nil {
		return "", &domain.ConfigurationError{StepID: step.ID, Detail: "nil button"}
	}

	target := btn.TargetStepID

	if step.ID == e.graph.EntryID() && btn.Action == domain.ActionBranch && step.BranchKey != "" {
		if override, ok := e.decisionOverride(state, step, btn); ok {
			target = override
		}
	} else {
		for _, cb := range step.ConditionalBranches {
			answer, ok := state.Answer(cb.Condition.StepID, cb.Condition.QuestionID)
			if ok && answer == cb.Condition.Value {
				target = cb.TargetStepID
				break
			}
		}
	}

	if target == "" {
		e.metrics.Transition("unresolved")
		return "", &domain.ConfigurationError{StepID: step.ID, Detail: "no branch rule matched and button " + btn.ID + " has no target"}
	}
	if _, ok := e.graph.Step(target); !ok {
		e.metrics.Transition("unresolved")
		return "", &domain.ConfigurationError{StepID: step.ID, Detail: "resolved target " + target + " does not exist"}
	}

	e.metrics.Transition("resolved")
	e.logger.Debug("resolved transition", "from", step.ID, "to", target, "button", btn.ID)
	return target, nil
}

// decisionOverride checks the entry step's conditional branches against the
// pressed button's value. A match only applies when the session cohort sees
// the offer path; the other cohort always follows the button's default.
func (e *Engine) decisionOverride(state *domain.FlowState, step *domain.Step, btn *domain.Button) (string, bool) {
	if !state.Variant.ShowsOffer() {
		return "", false
	}
	for _, cb := range step.ConditionalBranches {
		if cb.Condition.StepID == step.ID &&
			cb.Condition.QuestionID == step.BranchKey &&
			cb.Condition.Value == btn.Value {
			return cb.TargetStepID, true
		}
	}
	return "", false
}

// Retreat moves the state to the current step's declared predecessor. When
// none is declared it falls back to decrementing the ordinal. Returns false
// when already at the entry.
func (e *Engine) Retreat(state *domain.FlowState) bool {
	step, ok := e.graph.At(state.Ordinal)
	if !ok {
		return false
	}
	if step.PrevStepID != "" {
		if ord, found := e.graph.OrdinalOf(step.PrevStepID); found {
			state.Ordinal = ord
			e.metrics.Transition("retreat")
			return true
		}
	}
	if state.Ordinal > 0 {
		state.Ordinal--
		e.metrics.Transition("retreat")
		return true
	}
	return false
}

// ActivePath walks the graph from the entry using the recorded answers and
// cohort, returning the step ids the session traverses on its current
// trajectory. Steps whose branch inputs are still unanswered follow the
// default button targets.
func (e *Engine) ActivePath(state *domain.FlowState) []string {
	var path []string
	visited := make(map[string]bool, e.graph.Len())

	id := e.graph.EntryID()
	for id != "" && !visited[id] {
		visited[id] = true
		path = append(path, id)

		step, ok := e.graph.Step(id)
		if !ok || step.Terminal() {
			break
		}
		btn := forwardButton(state, step)
		if btn == nil {
			break
		}
		next, err := e.ResolveNext(state, step, btn)
		if err != nil {
			break
		}
		id = next
	}
	return path
}

// forwardButton picks the button the walk follows out of a step. A recorded
// branch answer selects the matching decision button; otherwise the first
// advancing button is the default.
func forwardButton(state *domain.FlowState, step *domain.Step) *domain.Button {
	if step.BranchKey != "" {
		if answer, ok := state.Answer(step.ID, step.BranchKey); ok {
			for i := range step.Buttons {
				b := &step.Buttons[i]
				if b.Action == domain.ActionBranch && b.Value == answer {
					return b
				}
			}
		}
	}
	for i := range step.Buttons {
		b := &step.Buttons[i]
		if b.Action == domain.ActionAdvance || b.Action == domain.ActionBranch {
			return b
		}
	}
	return nil
}

// Progress describes the session's position on its active path. Terminal
// confirmation steps are excluded from the total; a session parked on one
// reports Position == Total.
type Progress struct {
	Position int
	Total    int
}

// Progress derives the step counter from the active path.
func (e *Engine) Progress(state *domain.FlowState) Progress {
	path := e.ActivePath(state)

	total := 0
	for _, id := range path {
		if step, ok := e.graph.Step(id); ok && !step.Terminal() {
			total++
		}
	}

	current, ok := e.graph.At(state.Ordinal)
	if !ok {
		return Progress{Position: 1, Total: total}
	}

	position := 0
	for _, id := range path {
		step, found := e.graph.Step(id)
		if found && !step.Terminal() {
			position++
		}
		if id == current.ID {
			if step != nil && step.Terminal() {
				position = total
			}
			break
		}
	}
	if position == 0 {
		position = 1
	}
	return Progress{Position: position, Total: total}
}
