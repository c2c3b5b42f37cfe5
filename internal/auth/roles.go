package auth

// Role is a caller's access level. The ladder follows the API surface:
// viewers price plans and resolve template identities, operators also
// ingest meter data and run usage simulations, admins also register plan
// template identity keys.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// NormalizeRole maps a token claim to a known role, rejecting anything
// outside the ladder.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleViewer, RoleOperator, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleAtLeast reports whether role grants at least the required level.
// Admins subsume operators, operators subsume viewers.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleViewer:
		return 1
	case RoleOperator:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}
