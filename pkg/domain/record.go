package domain

import "time"

// CancellationRecord is the durable snapshot of a completed (or variant-pinned)
// flow. It is upserted on the composite key (UserID, SubscriptionID): at most
// one stored record per pair.
//
// The denormalized fields mirror the hybrid storage schema: the full answer
// map lives in FlowData, while the business-critical answers get their own
// columns for querying.
type CancellationRecord struct {
	UserID         string  `json:"user_id" mapstructure:"-"`
	SubscriptionID string  `json:"subscription_id" mapstructure:"-"`
	Variant        Variant `json:"downsell_variant" mapstructure:"-"`

	// FlowData is the freeform answer map, keyed by question id (follow-up
	// answers keep their composite keys).
	FlowData map[string]any `json:"flow_data" mapstructure:"-"`

	CurrentStep int  `json:"current_step" mapstructure:"-"`
	Completed   bool `json:"completed" mapstructure:"-"`

	// Denormalized core fields, decoded out of FlowData.
	GotJob             string `json:"got_job,omitempty" mapstructure:"gotJob"`
	CancelReason       string `json:"cancel_reason,omitempty" mapstructure:"cancelReason"`
	CompanyVisaSupport string `json:"company_visa_support,omitempty" mapstructure:"companyVisaSupport"`
	AcceptedDownsell   bool   `json:"accepted_downsell" mapstructure:"-"`
	FinalDecision      string `json:"final_decision,omitempty" mapstructure:"-"`

	CreatedAt time.Time `json:"created_at,omitzero" mapstructure:"-"`
	UpdatedAt time.Time `json:"updated_at,omitzero" mapstructure:"-"`
}

// Key returns the composite identity of the record.
func (r *CancellationRecord) Key() (userID, subscriptionID string) {
	return r.UserID, r.SubscriptionID
}

// Subscription carries the offer fields of a billing subscription. Billing
// itself is out of scope; only the offer endpoints touch this.
type Subscription struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	MonthlyPrice    int        `json:"monthly_price"` // cents
	Status          string     `json:"status"`
	OfferPercent    int        `json:"offer_percent"`
	OfferAccepted   bool       `json:"offer_accepted"`
	OfferAcceptedAt *time.Time `json:"offer_accepted_at,omitempty"`
	OfferDeclinedAt *time.Time `json:"offer_declined_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at,omitzero"`
	UpdatedAt       time.Time  `json:"updated_at,omitzero"`
}

// OfferUpdate describes an offer decision applied to a subscription.
// Accepted sets the accepted timestamp and clears the declined one; declined
// does the reverse.
type OfferUpdate struct {
	Percent  int  `json:"offer_percent"`
	Accepted bool `json:"offer_accepted"`
}
