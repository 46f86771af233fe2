package domain

// Question type variants define how an answer is collected and validated.
const (
	// QuestionChoice is a pick-one question over a fixed option set.
	QuestionChoice = "choice"
	// QuestionShortText is a single-line free text input.
	QuestionShortText = "short-text"
	// QuestionLongText is a multi-line free text input with a minimum length.
	QuestionLongText = "long-text"
	// QuestionSelect is a single select whose options may expose a follow-up input.
	QuestionSelect = "select-followup"
	// QuestionInfo is purely informational and never validated.
	QuestionInfo = "info"
)

// InputNumber is a follow-up input type for numeric answers.
// Follow-ups otherwise reuse the short-text/long-text question types.
const InputNumber = "number"

// Button action variants.
const (
	// ActionAdvance moves to the button's target step.
	ActionAdvance = "advance"
	// ActionRetreat moves to the step's declared predecessor.
	ActionRetreat = "retreat"
	// ActionBranch advances through the branch resolver (decision buttons).
	ActionBranch = "branch"
	// ActionClose terminates the flow (terminal step).
	ActionClose = "close"
)

// Option is one selectable value of a choice or select question.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// FollowUp is a nested question exposed when its Trigger value is selected
// on the parent select question. Its answer is recorded under the composite
// key CompositeKey(parentID, Trigger).
type FollowUp struct {
	Trigger   string `json:"trigger" yaml:"trigger"`
	Prompt    string `json:"prompt" yaml:"prompt"`
	InputType string `json:"input_type" yaml:"input_type"` // short-text, long-text, number
	Required  bool   `json:"required,omitempty" yaml:"required,omitempty"`
	MinLength int    `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength int    `json:"max_length,omitempty" yaml:"max_length,omitempty"`
}

// Question is one input of a step.
type Question struct {
	ID       string `json:"id" yaml:"id"`
	Prompt   string `json:"prompt" yaml:"prompt"`
	Type     string `json:"type" yaml:"type"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`

	// Options applies to choice and select-followup questions.
	Options []Option `json:"options,omitempty" yaml:"options,omitempty"`

	// MinLength/MaxLength apply to text questions. Zero means "use default".
	MinLength int `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength int `json:"max_length,omitempty" yaml:"max_length,omitempty"`

	// FollowUps applies to select-followup questions, keyed by triggering value.
	FollowUps []FollowUp `json:"follow_ups,omitempty" yaml:"follow_ups,omitempty"`
}

// FollowUpFor returns the follow-up exposed by the given selected value, if any.
func (q *Question) FollowUpFor(value string) *FollowUp {
	for i := range q.FollowUps {
		if q.FollowUps[i].Trigger == value {
			return &q.FollowUps[i]
		}
	}
	return nil
}

// HasOption reports whether value is a member of the declared option set.
func (q *Question) HasOption(value string) bool {
	for _, opt := range q.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// Button is one user action of a step.
type Button struct {
	ID     string `json:"id" yaml:"id"`
	Label  string `json:"label" yaml:"label"`
	Style  string `json:"style,omitempty" yaml:"style,omitempty"`
	Action string `json:"action" yaml:"action"`

	// TargetStepID is the default destination for advance/branch actions.
	// Conditional branches on the step may override it.
	TargetStepID string `json:"target_step_id,omitempty" yaml:"target,omitempty"`

	// Value is recorded under the step's BranchKey when a branch button is
	// pressed (decision buttons double as the answer).
	Value string `json:"value,omitempty" yaml:"value,omitempty"`

	// RequiresAnswers lists question ids that must be answered before this
	// button is enabled.
	RequiresAnswers []string `json:"requires_answers,omitempty" yaml:"requires_answers,omitempty"`
}

// Condition is the predicate of a conditional branch: the recorded answer of
// (StepID, QuestionID) must equal Value.
type Condition struct {
	StepID     string `json:"step_id" yaml:"step"`
	QuestionID string `json:"question_id" yaml:"question"`
	Value      string `json:"value" yaml:"value"`
}

// ConditionalBranch overrides a button's default target when its condition
// matches. Branches are evaluated in declaration order; the first match wins.
type ConditionalBranch struct {
	Condition    Condition `json:"condition" yaml:"condition"`
	TargetStepID string    `json:"target_step_id" yaml:"target"`
}

// Step is one node of the flow graph. Content fields (headings, description,
// note) are carried as data for the host to render; the engine only reads
// the control metadata.
type Step struct {
	ID     string `json:"id" yaml:"id"`
	Number int    `json:"number" yaml:"number"` // declarative label, not position

	Heading     string `json:"heading,omitempty" yaml:"heading,omitempty"`
	SubHeading  string `json:"sub_heading,omitempty" yaml:"sub_heading,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Note        string `json:"note,omitempty" yaml:"note,omitempty"`

	// BranchKey names the primary decision question of this step.
	BranchKey string `json:"branch_key,omitempty" yaml:"branch_key,omitempty"`

	// PrevStepID is the explicit "back" target. Retreat follows it instead of
	// a naive ordinal decrement, since the linear predecessor is wrong once a
	// branch has been taken.
	PrevStepID string `json:"prev_step_id,omitempty" yaml:"prev,omitempty"`

	Questions []Question `json:"questions,omitempty" yaml:"questions,omitempty"`
	Buttons   []Button   `json:"buttons,omitempty" yaml:"buttons,omitempty"`

	// OfferButton is the downsell shortcut shown on variant B steps.
	OfferButton *Button `json:"offer_button,omitempty" yaml:"offer_button,omitempty"`
	ShowOffer   bool    `json:"show_offer,omitempty" yaml:"show_offer,omitempty"`

	ConditionalBranches []ConditionalBranch `json:"conditional_branches,omitempty" yaml:"branches,omitempty"`
}

// Button returns the button with the given id, or nil.
func (s *Step) Button(id string) *Button {
	if s.OfferButton != nil && s.OfferButton.ID == id {
		return s.OfferButton
	}
	for i := range s.Buttons {
		if s.Buttons[i].ID == id {
			return &s.Buttons[i]
		}
	}
	return nil
}

// Question returns the question with the given id, or nil.
func (s *Step) Question(id string) *Question {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i]
		}
	}
	return nil
}

// Terminal reports whether this step only closes the flow (every button is a
// close action).
func (s *Step) Terminal() bool {
	if len(s.Buttons) == 0 {
		return false
	}
	for _, b := range s.Buttons {
		if b.Action != ActionClose {
			return false
		}
	}
	return true
}

// CompositeKey namespaces a follow-up answer under its parent question and
// the option value that exposed it.
func CompositeKey(parentID, value string) string {
	return parentID + "_" + value
}
