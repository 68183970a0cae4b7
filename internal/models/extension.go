package models

type ExtensionStatus string

const (
	ExtensionPending  ExtensionStatus = "pending"
	ExtensionApproved ExtensionStatus = "approved"
	ExtensionRejected ExtensionStatus = "rejected"
)

// Extension is a request to move a plan's end date.
type Extension struct {
	ID               string          `db:"id" json:"id"`
	PlanID           string          `db:"plan_id" json:"plan_id"`
	RequestDate      Date            `db:"request_date" json:"request_date"`
	RequestedEndDate Date            `db:"requested_end_date" json:"requested_end_date"`
	Reason           string          `db:"reason" json:"reason"`
	Status           ExtensionStatus `db:"status" json:"status"`
	DecidedBy        *string         `db:"decided_by" json:"decided_by,omitempty"`
	DecisionDate     *Date           `db:"decision_date" json:"decision_date,omitempty"`
	DecisionNote     *string         `db:"decision_note" json:"decision_note,omitempty"`
}
