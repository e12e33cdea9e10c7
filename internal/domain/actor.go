package domain

// Role represents an institutional role
type Role string

const (
	RoleStudent   Role = "student"
	RoleFaculty   Role = "faculty"
	RoleRegistrar Role = "registrar"
	RoleAdmin     Role = "admin"
)

// IsValid reports whether the role is one of the known institutional roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleRegistrar, RoleAdmin:
		return true
	}
	return false
}

// Actor is the identity snapshot captured on a Plan at creation time.
// Permission checks always run against this snapshot rather than a live
// session object; RoleVersion is a freshness token bumped whenever the
// user's role or scope changes, so a decision made against a stale
// snapshot can be detected and rejected.
type Actor struct {
	UserID          string `json:"user_id"`
	Role            Role   `json:"role"`
	DepartmentScope string `json:"department_scope,omitempty"`
	RoleVersion     int    `json:"role_version"`
}

// SameGrant reports whether two snapshots carry the same privileges.
func (a Actor) SameGrant(other Actor) bool {
	return a.UserID == other.UserID &&
		a.Role == other.Role &&
		a.DepartmentScope == other.DepartmentScope &&
		a.RoleVersion == other.RoleVersion
}
