package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAdmin = "admin"
	RoleSales = "sales"
)

// IsAdmin reports the role that passes every role check.
func IsAdmin(role string) bool { return role == RoleAdmin }

// Valid reports whether role is a known role.
func Valid(role string) bool { return role == RoleAdmin || role == RoleSales }
