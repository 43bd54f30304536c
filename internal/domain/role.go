package domain

// Role is one of the two parties permitted in a session. The host is the
// booking's mentor, the guest its mentee.
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

func (r Role) Valid() bool {
	return r == RoleHost || r == RoleGuest
}

// Other returns the counterpart role.
func (r Role) Other() Role {
	if r == RoleHost {
		return RoleGuest
	}
	return RoleHost
}
