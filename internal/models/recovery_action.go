package models

type ActionType string

const (
	ActionPaymentPlanOffered  ActionType = "payment_plan_offered"
	ActionDemandLetter        ActionType = "demand_letter"
	ActionLegalReferral       ActionType = "legal_referral"
	ActionDebtCollection      ActionType = "debt_collection"
	ActionTribunalApplication ActionType = "tribunal_application"
)

// Valid reports whether t is a known recovery action type.
func (t ActionType) Valid() bool {
	switch t {
	case ActionPaymentPlanOffered, ActionDemandLetter, ActionLegalReferral, ActionDebtCollection, ActionTribunalApplication:
		return true
	}
	return false
}

// RecoveryAction is an append-only audit entry of an escalation step.
type RecoveryAction struct {
	ID         string     `db:"id" json:"id"`
	BuildingID string     `db:"building_id" json:"building_id"`
	LotID      string     `db:"lot_id" json:"lot_id"`
	ActionType ActionType `db:"action_type" json:"action_type"`
	ActionDate Date       `db:"action_date" json:"action_date"`
	ActorID    *string    `db:"actor_id" json:"actor_id,omitempty"`
	Notes      *string    `db:"notes" json:"notes,omitempty"`
}

// Eligibility is the outcome of a recovery gate check.
type Eligibility struct {
	LotID      string     `json:"lot_id"`
	ActionType ActionType `json:"action_type"`
	Allowed    bool       `json:"allowed"`
	Reason     string     `json:"reason"`
	PlanID     string     `json:"plan_id,omitempty"`
}
