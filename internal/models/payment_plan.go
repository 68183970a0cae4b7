package models

import "github.com/Dan9191/strata-service/internal/money"

type PlanStatus string

const (
	PlanPending   PlanStatus = "pending"
	PlanApproved  PlanStatus = "approved"
	PlanRejected  PlanStatus = "rejected"
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
	PlanDefaulted PlanStatus = "defaulted"
)

var planTransitions = map[PlanStatus][]PlanStatus{
	PlanPending:  {PlanApproved, PlanRejected},
	PlanApproved: {PlanActive},
	PlanActive:   {PlanCompleted, PlanDefaulted},
}

// CanTransition reports whether the plan state machine allows s -> to.
func (s PlanStatus) CanTransition(to PlanStatus) bool {
	for _, next := range planTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s PlanStatus) IsTerminal() bool {
	return s == PlanRejected || s == PlanCompleted || s == PlanDefaulted
}

// BlocksRecovery reports whether a plan in this status blocks recovery actions.
func (s PlanStatus) BlocksRecovery() bool {
	return s == PlanApproved || s == PlanActive
}

type Frequency string

const (
	Weekly      Frequency = "weekly"
	Fortnightly Frequency = "fortnightly"
	Monthly     Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	return f == Weekly || f == Fortnightly || f == Monthly
}

// PaymentPlan is an agreed schedule to repay arrears for a lot.
type PaymentPlan struct {
	ID                    string       `db:"id" json:"id"`
	LotID                 string       `db:"lot_id" json:"lot_id"`
	BuildingID            string       `db:"building_id" json:"building_id"`
	UserID                string       `db:"user_id" json:"user_id"`
	TotalOwed             money.Amount `db:"total_owed" json:"total_owed"`
	InterestOwed          money.Amount `db:"interest_owed" json:"interest_owed"`
	RequestInterestWaiver bool         `db:"request_interest_waiver" json:"request_interest_waiver"`
	InterestWaived        bool         `db:"interest_waived" json:"interest_waived"`
	NumberOfInstallments  int          `db:"number_of_installments" json:"number_of_installments"`
	InstallmentAmount     money.Amount `db:"installment_amount" json:"installment_amount"`
	InstallmentFrequency  Frequency    `db:"installment_frequency" json:"installment_frequency"`
	RequestDate           Date         `db:"request_date" json:"request_date"`
	ApprovedDate          *Date        `db:"approved_date" json:"approved_date,omitempty"`
	StartDate             *Date        `db:"start_date" json:"start_date,omitempty"`
	EndDate               *Date        `db:"end_date" json:"end_date,omitempty"`
	PaidInstallments      int          `db:"paid_installments" json:"paid_installments"`
	Status                PlanStatus   `db:"status" json:"status"`
	RefusalReason         *string      `db:"refusal_reason" json:"refusal_reason,omitempty"`
	Notes                 *string      `db:"notes" json:"notes,omitempty"`
	PrincipalPaid         money.Amount `db:"principal_paid" json:"principal_paid"`
	InterestPaid          money.Amount `db:"interest_paid" json:"interest_paid"`
	Version               int64        `db:"version" json:"-"`

	Installments []Installment `db:"-" json:"installments,omitempty"`
}

// ScheduledTotal is what the installments must sum to.
func (p PaymentPlan) ScheduledTotal() money.Amount {
	if p.InterestWaived {
		return p.TotalOwed
	}
	return p.TotalOwed + p.InterestOwed
}

// SplitPayment divides a plan payment into principal and interest, principal first.
func (p PaymentPlan) SplitPayment(amount money.Amount) (principal, interest money.Amount) {
	remaining := p.TotalOwed - p.PrincipalPaid
	if remaining < 0 {
		remaining = 0
	}
	principal = money.Min(amount, remaining)
	return principal, amount - principal
}

// PlanProgress is a read-only aggregate over a plan's installments.
type PlanProgress struct {
	PlanID                string       `json:"plan_id"`
	Status                PlanStatus   `json:"status"`
	TotalPaid             money.Amount `json:"total_paid"`
	TotalRemaining        money.Amount `json:"total_remaining"`
	PercentComplete       float64      `json:"percent_complete"`
	InstallmentsPaid      int          `json:"installments_paid"`
	InstallmentsRemaining int          `json:"installments_remaining"`
}

// ResponseDeadline tracks the statutory decision window of a plan request.
type ResponseDeadline struct {
	PlanID        string `json:"plan_id"`
	RequestDate   Date   `json:"request_date"`
	Deadline      Date   `json:"deadline"`
	DaysElapsed   int    `json:"days_elapsed"`
	DaysRemaining int    `json:"days_remaining"`
	Urgent        bool   `json:"urgent"`
	Breached      bool   `json:"breached"`
}

// PendingDecision pairs a pending plan with its response deadline.
type PendingDecision struct {
	Plan     PaymentPlan      `json:"plan"`
	Deadline ResponseDeadline `json:"deadline"`
}
