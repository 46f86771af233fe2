package domain

// Variant is the A/B cohort label permanently associated with a user.
type Variant string

const (
	VariantA Variant = "A"
	VariantB Variant = "B"
)

// Valid reports whether v is a known cohort label.
func (v Variant) Valid() bool {
	return v == VariantA || v == VariantB
}

// ShowsOffer reports whether this cohort sees the downsell offer path.
func (v Variant) ShowsOffer() bool {
	return v == VariantB
}

// Final decisions recorded at the end of a flow.
const (
	DecisionCancelled = "cancelled"
	DecisionKept      = "kept"
)

// FlowState is the mutable snapshot of one flow session. One instance exists
// per active session, owned by its Session; it is never shared across
// sessions. A durable snapshot is written only at the terminal step and at
// first variant assignment.
type FlowState struct {
	// Ordinal is the index of the current step in the graph's flattened
	// declaration order. Branching resolves to a concrete index at transition
	// time; the graph address is not stored.
	Ordinal int

	Variant Variant

	// Answers maps stepID -> questionID (or composite key) -> answer.
	Answers map[string]map[string]string

	// Errors maps questionID (or composite key) -> message. Absence of a key
	// means the field is valid. Replaced wholesale on every validation pass.
	Errors map[string]string

	Completed bool

	// AcceptedOffer is set when the downsell offer button is taken.
	AcceptedOffer bool

	// FinalDecision is DecisionCancelled or DecisionKept once known.
	FinalDecision string
}

// NewFlowState creates a clean state pinned to the given cohort, positioned
// at the first step.
func NewFlowState(variant Variant) *FlowState {
	return &FlowState{
		Variant: variant,
		Answers: make(map[string]map[string]string),
		Errors:  make(map[string]string),
	}
}

// SetAnswer records a scalar answer keyed by question id within a step.
// Follow-up answers use the composite key as questionID.
func (s *FlowState) SetAnswer(stepID, questionID, value string) {
	step, ok := s.Answers[stepID]
	if !ok {
		step = make(map[string]string)
		s.Answers[stepID] = step
	}
	step[questionID] = value
}

// Answer returns the recorded answer for (stepID, questionID).
func (s *FlowState) Answer(stepID, questionID string) (string, bool) {
	step, ok := s.Answers[stepID]
	if !ok {
		return "", false
	}
	v, ok := step[questionID]
	return v, ok
}

// ClearAnswer removes a recorded answer. Used when a parent selection changes
// and its follow-up answer is no longer meaningful.
func (s *FlowState) ClearAnswer(stepID, questionID string) {
	if step, ok := s.Answers[stepID]; ok {
		delete(step, questionID)
	}
}

// Flatten merges every recorded answer into a single map keyed by question
// id. Follow-up answers keep their composite keys. This is the freeform
// flow-data payload persisted with the final record.
func (s *FlowState) Flatten() map[string]any {
	out := make(map[string]any)
	for _, step := range s.Answers {
		for qid, v := range step {
			out[qid] = v
		}
	}
	return out
}

// Clone returns a deep copy so a snapshot can be persisted or inspected
// without racing the live session.
func (s *FlowState) Clone() *FlowState {
	next := *s
	next.Answers = make(map[string]map[string]string, len(s.Answers))
	for stepID, qs := range s.Answers {
		cp := make(map[string]string, len(qs))
		for k, v := range qs {
			cp[k] = v
		}
		next.Answers[stepID] = cp
	}
	next.Errors = make(map[string]string, len(s.Errors))
	for k, v := range s.Errors {
		next.Errors[k] = v
	}
	return &next
}
