package models

import "github.com/Dan9191/strata-service/internal/money"

type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPaid    InstallmentStatus = "paid"
	InstallmentOverdue InstallmentStatus = "overdue"
)

// Installment represents one scheduled payment of a plan.
type Installment struct {
	ID                string            `db:"id" json:"id"`
	PlanID            string            `db:"plan_id" json:"plan_id"`
	InstallmentNumber int               `db:"installment_number" json:"installment_number"`
	DueDate           Date              `db:"due_date" json:"due_date"`
	Amount            money.Amount      `db:"amount" json:"amount"`
	Status            InstallmentStatus `db:"status" json:"status"`
	PaidAmount        money.Amount      `db:"paid_amount" json:"paid_amount"`
	PaidDate          *Date             `db:"paid_date" json:"paid_date,omitempty"`
	PaymentReference  *string           `db:"payment_reference" json:"payment_reference,omitempty"`
}

func (i Installment) Outstanding() money.Amount {
	if i.PaidAmount >= i.Amount {
		return 0
	}
	return i.Amount - i.PaidAmount
}

func (i Installment) IsPaid() bool {
	return i.Status == InstallmentPaid
}
