package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/offramp/pkg/domain"
	"github.com/aretw0/offramp/pkg/graph"
)

func TestCancellationGraph_Integrity(t *testing.T) {
	g := graph.Cancellation()

	assert.Equal(t, "got-job", g.EntryID())
	assert.NoError(t, g.Validate())

	// Every declared predecessor must be reachable by id.
	for _, s := range g.Steps() {
		if s.PrevStepID != "" {
			_, ok := g.Step(s.PrevStepID)
			assert.True(t, ok, "step %s has dangling predecessor %s", s.ID, s.PrevStepID)
		}
	}
}

func TestCancellationGraph_VisaTypeStep(t *testing.T) {
	g := graph.Cancellation()

	step, ok := g.Step("visa-type-company")
	require.True(t, ok)
	assert.Equal(t, "visa-status", step.PrevStepID)

	q := step.Question("visaTypeCompany")
	require.NotNil(t, q)
	assert.Equal(t, domain.QuestionLongText, q.Type)
	assert.True(t, q.Required)
	assert.Equal(t, 200, q.MaxLength)

	btn := step.Button("continue")
	require.NotNil(t, btn)
	assert.Equal(t, "all-done", btn.TargetStepID)
}

func TestNew_DuplicateID(t *testing.T) {
	_, err := graph.New([]domain.Step{
		{ID: "a", Buttons: []domain.Button{{ID: "x", Action: domain.ActionClose}}},
		{ID: "a"},
	})
	require.Error(t, err)
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "a", cfgErr.StepID)
}

func TestValidate_DanglingTargets(t *testing.T) {
	g, err := graph.New([]domain.Step{
		{
			ID: "start",
			Buttons: []domain.Button{
				{ID: "go", Action: domain.ActionAdvance, TargetStepID: "missing"},
			},
			ConditionalBranches: []domain.ConditionalBranch{
				{
					Condition:    domain.Condition{StepID: "start", QuestionID: "nope", Value: "x"},
					TargetStepID: "also-missing",
				},
			},
		},
	})
	require.NoError(t, err)

	err = g.Validate()
	require.Error(t, err)

	var aggr *domain.AggregateError
	require.ErrorAs(t, err, &aggr)
	// Dangling button target, dangling branch target, unknown condition question.
	assert.Len(t, aggr.Errors, 3)
}

func TestValidate_FollowUpTrigger(t *testing.T) {
	g, err := graph.New([]domain.Step{
		{
			ID: "reason",
			Questions: []domain.Question{
				{
					ID:      "why",
					Type:    domain.QuestionSelect,
					Options: []domain.Option{{Value: "a", Label: "A"}},
					FollowUps: []domain.FollowUp{
						{Trigger: "b", InputType: domain.QuestionShortText},
					},
				},
			},
			Buttons: []domain.Button{{ID: "done", Action: domain.ActionClose}},
		},
	})
	require.NoError(t, err)

	err = g.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown option "b"`)
}

func TestLoad_YAML(t *testing.T) {
	doc := `
- id: start
  number: 1
  heading: "Ready?"
  branch_key: ready
  buttons:
    - id: yes
      label: "Yes"
      action: branch
      target: done
      value: "yes"
- id: done
  number: 2
  prev: start
  buttons:
    - id: finish
      label: "Finish"
      action: close
`
	g, err := graph.Load(strings.NewReader(doc))
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	assert.Equal(t, 2, g.Len())
	assert.Equal(t, "start", g.EntryID())

	step, ok := g.Step("done")
	require.True(t, ok)
	assert.Equal(t, "start", step.PrevStepID)
	assert.True(t, step.Terminal())

	ord, ok := g.OrdinalOf("done")
	require.True(t, ok)
	assert.Equal(t, 1, ord)
}
