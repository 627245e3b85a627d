package model

type Role string

const (
	RoleManager  Role = "manager"
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
	RoleSystem   Role = "system"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleManager, RoleStaff, RoleCustomer, RoleSystem:
		return r, true
	}
	return "", false
}

// Actor is the caller of an operation. BusinessID is the business a manager
// or staff member belongs to; customers and the system carry none.
type Actor struct {
	ID         string
	Role       Role
	BusinessID string
}

const systemActorID = "system"

// SystemActor is the identity used by time-based automation.
func SystemActor() Actor {
	return Actor{ID: systemActorID, Role: RoleSystem}
}
