package models

import "github.com/Dan9191/strata-service/internal/money"

type TargetType string

const (
	TargetPlan TargetType = "plan"
	TargetLevy TargetType = "levy"
)

// IncomingPayment is a settled amount to apply to a plan or a levy.
type IncomingPayment struct {
	TargetType TargetType   `json:"target_type"`
	TargetID   string       `json:"target_id"`
	Amount     money.Amount `json:"amount"`
	Reference  string       `json:"reference"`
	PaidDate   Date         `json:"paid_date"`
}

// Payment is a recorded, applied payment.
type Payment struct {
	ID         string       `db:"id" json:"id"`
	TargetType TargetType   `db:"target_type" json:"target_type"`
	TargetID   string       `db:"target_id" json:"target_id"`
	Reference  string       `db:"reference" json:"reference"`
	Amount     money.Amount `db:"amount" json:"amount"`
	Principal  money.Amount `db:"principal" json:"principal"`
	Interest   money.Amount `db:"interest" json:"interest"`
	Costs      money.Amount `db:"costs" json:"costs"`
	PaidDate   Date         `db:"paid_date" json:"paid_date"`
}

// PaymentAllocation records the part of a payment credited to one installment.
type PaymentAllocation struct {
	PaymentID         string       `db:"payment_id" json:"-"`
	InstallmentNumber int          `db:"installment_number" json:"installment_number"`
	Amount            money.Amount `db:"amount" json:"amount"`
	Settled           bool         `db:"settled" json:"settled"`
}

// PaymentResult is returned by the allocator. A replayed reference returns the
// stored result with Duplicate set.
type PaymentResult struct {
	Payment     Payment             `json:"payment"`
	Allocations []PaymentAllocation `json:"allocations,omitempty"`
	PlanStatus  PlanStatus          `json:"plan_status,omitempty"`
	LevyStatus  LevyStatus          `json:"levy_status,omitempty"`
	Duplicate   bool                `json:"duplicate"`
}
