package models

// Role is the role of an actor, either globally (token) or within a building.
type Role string

const (
	RoleResident  Role = "resident"
	RoleOwner     Role = "owner"
	RoleManager   Role = "manager"
	RoleCommittee Role = "committee"
	RoleAdmin     Role = "admin"
)

// CanDecide reports whether the role may approve or reject plans and extensions.
func (r Role) CanDecide() bool {
	return r == RoleManager || r == RoleCommittee || r == RoleAdmin
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}
