package runtime_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/offramp/pkg/domain"
)

func TestValidateStep_LongTextBoundary(t *testing.T) {
	e := newEngine(t)
	step, ok := e.Graph().Step("help-feedback")
	require.True(t, ok)

	state := domain.NewFlowState(domain.VariantA)

	state.SetAnswer("help-feedback", "helpFeedback", strings.Repeat("x", 24))
	errs := e.ValidateStep(step, state)
	assert.Contains(t, errs["helpFeedback"], "at least 25 characters")

	state.SetAnswer("help-feedback", "helpFeedback", strings.Repeat("x", 25))
	assert.Empty(t, e.ValidateStep(step, state))

	// Padding does not count toward the minimum.
	state.SetAnswer("help-feedback", "helpFeedback", strings.Repeat("x", 24)+"   ")
	errs = e.ValidateStep(step, state)
	assert.Contains(t, errs["helpFeedback"], "at least 25 characters")

	state.SetAnswer("help-feedback", "helpFeedback", strings.Repeat("x", 1001))
	errs = e.ValidateStep(step, state)
	assert.Contains(t, errs["helpFeedback"], "Maximum 1000 characters")
}

func TestValidateStep_ChoiceMembership(t *testing.T) {
	e := newEngine(t)
	step, ok := e.Graph().Step("job-source")
	require.True(t, ok)

	state := domain.NewFlowState(domain.VariantA)

	// Required choice missing.
	errs := e.ValidateStep(step, state)
	assert.Equal(t, "This field is required", errs["jobViaMM"])
	// Optional choices missing are fine.
	assert.NotContains(t, errs, "jobsAppliedViaMM")

	state.SetAnswer("job-source", "jobViaMM", "maybe")
	errs = e.ValidateStep(step, state)
	assert.Equal(t, "Please select a valid option", errs["jobViaMM"])

	state.SetAnswer("job-source", "jobViaMM", "yes")
	assert.Empty(t, e.ValidateStep(step, state))
}

func TestValidateStep_SelectFollowUp(t *testing.T) {
	e := newEngine(t)
	step, ok := e.Graph().Step("cancel-reason")
	require.True(t, ok)

	state := domain.NewFlowState(domain.VariantB)

	t.Run("numeric follow-up", func(t *testing.T) {
		state.SetAnswer("cancel-reason", "cancelReason", "too-expensive")
		key := domain.CompositeKey("cancelReason", "too-expensive")

		errs := e.ValidateStep(step, state)
		assert.Equal(t, "This field is required", errs[key])

		state.SetAnswer("cancel-reason", key, "abc")
		errs = e.ValidateStep(step, state)
		assert.Equal(t, "Please enter a valid number", errs[key])

		state.SetAnswer("cancel-reason", key, "15")
		assert.Empty(t, e.ValidateStep(step, state))
	})

	t.Run("long-text follow-up", func(t *testing.T) {
		state.SetAnswer("cancel-reason", "cancelReason", "other")
		key := domain.CompositeKey("cancelReason", "other")

		errs := e.ValidateStep(step, state)
		assert.Equal(t, "This field is required", errs[key])

		state.SetAnswer("cancel-reason", key, "too short")
		errs = e.ValidateStep(step, state)
		assert.Contains(t, errs[key], "at least 25 characters")

		state.SetAnswer("cancel-reason", key, strings.Repeat("the platform lacked roles ", 2))
		assert.Empty(t, e.ValidateStep(step, state))
	})

	t.Run("a stale follow-up answer for another option is ignored", func(t *testing.T) {
		// The too-expensive follow-up answer from the earlier subtest is still
		// recorded, but the active selection is "other" with its own answer.
		state.SetAnswer("cancel-reason", "cancelReason", "other")
		assert.Empty(t, e.ValidateStep(step, state))
	})
}

func TestValidateStep_VisaShortText(t *testing.T) {
	e := newEngine(t)
	step, ok := e.Graph().Step("visa-status")
	require.True(t, ok)

	state := domain.NewFlowState(domain.VariantA)
	state.SetAnswer("visa-status", "companyVisaSupport", "yes")
	key := domain.CompositeKey("companyVisaSupport", "yes")

	errs := e.ValidateStep(step, state)
	assert.Equal(t, "This field is required", errs[key])

	state.SetAnswer("visa-status", key, strings.Repeat("v", 101))
	errs = e.ValidateStep(step, state)
	assert.Contains(t, errs[key], "Maximum 100 characters")

	state.SetAnswer("visa-status", key, "O-1")
	assert.Empty(t, e.ValidateStep(step, state))
}

func TestValidateForButton_GatesUnansweredQuestions(t *testing.T) {
	e := newEngine(t)
	step, ok := e.Graph().Step("usage-feedback")
	require.True(t, ok)
	btn := step.Button("continue")
	require.NotNil(t, btn)

	state := domain.NewFlowState(domain.VariantB)

	// None of the gated questions is marked required, so plain step validation
	// passes while the button gate does not.
	assert.Empty(t, e.ValidateStep(step, state))
	errs := e.ValidateForButton(step, btn, state)
	assert.Len(t, errs, 3)
	assert.Equal(t, "This field is required", errs["jobsAppliedViaMM_NoJob"])

	state.SetAnswer("usage-feedback", "jobsAppliedViaMM_NoJob", "1-5")
	state.SetAnswer("usage-feedback", "emailsDirect_NoJob", "0")
	state.SetAnswer("usage-feedback", "interviewsDone_NoJob", "1-2")
	assert.Empty(t, e.ValidateForButton(step, btn, state))
}
