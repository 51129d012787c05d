package auth

import "time"

// Role scopes what a bearer token may do on the API.
type Role string

const (
	// RoleOperator may upload files and schedule messages.
	RoleOperator Role = "operator"
	// RoleViewer may only read.
	RoleViewer Role = "viewer"
)

// DefaultTTL is the lifetime of issued tokens when none is given.
const DefaultTTL = 24 * time.Hour

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	Role      Role
	ExpiresAt time.Time
}

// CanWrite reports whether the role may call mutating routes.
func (r Role) CanWrite() bool {
	return r == RoleOperator
}

func isValidRole(role Role) bool {
	switch role {
	case RoleOperator, RoleViewer:
		return true
	default:
		return false
	}
}
