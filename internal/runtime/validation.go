package runtime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/offramp/pkg/domain"
)

// Validation defaults applied when a question does not declare its own limits.
const (
	DefaultMinLongText  = 25
	DefaultMaxLongText  = 1000
	DefaultMaxShortText = 100
)

const requiredMessage = "This field is required"

// ValidateStep checks every question of a step against the recorded answers
// and returns a fresh error map keyed by question id (or composite key for
// follow-ups). An empty map means the step is valid. Buttons may additionally
// gate on RequiresAnswers; use ValidateForButton for a button press.
func (e *Engine) ValidateStep(step *domain.Step, state *domain.FlowState) map[string]string {
	errs := make(map[string]string)
	for i := range step.Questions {
		e.validateQuestion(&step.Questions[i], step.ID, state, errs)
	}
	return errs
}

// ValidateForButton validates the step and additionally requires an answer
// for every question the pressed button gates on, whether or not the question
// itself is marked required.
func (e *Engine) ValidateForButton(step *domain.Step, btn *domain.Button, state *domain.FlowState) map[string]string {
	errs := e.ValidateStep(step, state)
	for _, qid := range btn.RequiresAnswers {
		if _, ok := errs[qid]; ok {
			continue
		}
		answer, ok := state.Answer(step.ID, qid)
		if !ok || strings.TrimSpace(answer) == "" {
			errs[qid] = requiredMessage
		}
	}
	if len(errs) > 0 {
		e.metrics.ValidationFailure()
		e.logger.Debug("step validation failed", "step", step.ID, "fields", len(errs))
	}
	return errs
}

func (e *Engine) validateQuestion(q *domain.Question, stepID string, state *domain.FlowState, errs map[string]string) {
	answer, answered := state.Answer(stepID, q.ID)

	switch q.Type {
	case domain.QuestionInfo:
		return

	case domain.QuestionChoice:
		if !answered || answer == "" {
			if q.Required {
				errs[q.ID] = requiredMessage
			}
			return
		}
		if !q.HasOption(answer) {
			errs[q.ID] = "Please select a valid option"
		}

	case domain.QuestionSelect:
		if !answered || answer == "" {
			if q.Required {
				errs[q.ID] = requiredMessage
			}
			return
		}
		if !q.HasOption(answer) {
			errs[q.ID] = "Please select a valid option"
			return
		}
		fu := q.FollowUpFor(answer)
		if fu == nil {
			return
		}
		key := domain.CompositeKey(q.ID, answer)
		fuAnswer, _ := state.Answer(stepID, key)
		if msg := validateInput(fu.InputType, fuAnswer, fu.Required, fu.MinLength, fu.MaxLength); msg != "" {
			errs[key] = msg
		}

	case domain.QuestionShortText, domain.QuestionLongText:
		if msg := validateInput(q.Type, answer, q.Required, q.MinLength, q.MaxLength); msg != "" {
			errs[q.ID] = msg
		}
	}
}

// validateInput applies the text/number rules shared by questions and
// follow-up inputs. Lengths are measured after trimming whitespace.
func validateInput(inputType, answer string, required bool, minLen, maxLen int) string {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		if required {
			return requiredMessage
		}
		return ""
	}

	switch inputType {
	case domain.InputNumber:
		if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
			return "Please enter a valid number"
		}

	case domain.QuestionLongText:
		if minLen == 0 {
			minLen = DefaultMinLongText
		}
		if maxLen == 0 {
			maxLen = DefaultMaxLongText
		}
		if len([]rune(trimmed)) < minLen {
			return fmt.Sprintf("Please enter at least %d characters so we can understand your feedback", minLen)
		}
		if len([]rune(trimmed)) > maxLen {
			return fmt.Sprintf("Maximum %d characters allowed", maxLen)
		}

	case domain.QuestionShortText:
		if maxLen == 0 {
			maxLen = DefaultMaxShortText
		}
		if len([]rune(trimmed)) > maxLen {
			return fmt.Sprintf("Maximum %d characters allowed", maxLen)
		}
	}
	return ""
}
