package models

import "github.com/Dan9191/strata-service/internal/money"

type LevyStatus string

const (
	LevyPending LevyStatus = "pending"
	LevyOverdue LevyStatus = "overdue"
	LevyPaid    LevyStatus = "paid"
)

// Levy is a periodic charge against a lot.
type Levy struct {
	ID            string       `db:"id" json:"id"`
	LotID         string       `db:"lot_id" json:"lot_id"`
	BuildingID    string       `db:"building_id" json:"building_id"`
	Period        string       `db:"period" json:"period"`
	Amount        money.Amount `db:"amount" json:"amount"`
	DueDate       Date         `db:"due_date" json:"due_date"`
	Status        LevyStatus   `db:"status" json:"status"`
	PaidAt        *Date        `db:"paid_at" json:"paid_at,omitempty"`
	RecoveryCosts money.Amount `db:"recovery_costs" json:"recovery_costs"`
	PrincipalPaid money.Amount `db:"principal_paid" json:"principal_paid"`
	InterestPaid  money.Amount `db:"interest_paid" json:"interest_paid"`
	CostsPaid     money.Amount `db:"costs_paid" json:"costs_paid"`
	Version       int64        `db:"version" json:"-"`
}

// OutstandingPrincipal is the unpaid part of the levy amount.
func (l Levy) OutstandingPrincipal() money.Amount {
	if l.PrincipalPaid >= l.Amount {
		return 0
	}
	return l.Amount - l.PrincipalPaid
}

// OutstandingCosts is the unpaid part of recorded recovery costs.
func (l Levy) OutstandingCosts() money.Amount {
	if l.CostsPaid >= l.RecoveryCosts {
		return 0
	}
	return l.RecoveryCosts - l.CostsPaid
}

// PlanLevy is a levy covered by a payment plan. Covered is the principal the
// plan took over when it was requested.
type PlanLevy struct {
	Levy
	Covered money.Amount `db:"covered" json:"covered"`
}

// LevyArrears is one unpaid levy as reported to operators.
type LevyArrears struct {
	Levy                 Levy         `json:"levy"`
	DaysOverdue          int          `json:"days_overdue"`
	Overdue              bool         `json:"overdue"`
	OutstandingPrincipal money.Amount `json:"outstanding_principal"`
	OutstandingInterest  money.Amount `json:"outstanding_interest"`
	OutstandingCosts     money.Amount `json:"outstanding_costs"`
}

// ArrearsSummary aggregates the unpaid levies of a lot.
type ArrearsSummary struct {
	LotID            string        `json:"lot_id"`
	AsOf             Date          `json:"as_of"`
	Levies           []LevyArrears `json:"levies"`
	TotalOutstanding money.Amount  `json:"total_outstanding"`
}
