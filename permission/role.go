package permission

// Role names an account role carried in the "role" claim of an access token.
type Role string

const (
	// RoleAdmin manages the product catalog.
	RoleAdmin Role = "admin"
	// RoleSuperAdmin has every admin capability and shares the admin dashboard.
	RoleSuperAdmin Role = "superAdmin"
	// RoleUser is a storefront customer.
	RoleUser Role = "user"
)

const (
	// AdminLanding is the dashboard root for admin and superAdmin accounts.
	AdminLanding = "/dashboard/admin"
	// UserLanding is the dashboard root for customer accounts.
	UserLanding = "/dashboard/user"
)

func (r Role) String() string { return string(r) }

// Contains reports whether r is one of allowed. An empty role is never allowed.
func Contains(allowed []Role, r Role) bool {
	if r == "" {
		return false
	}
	for _, a := range allowed {
		if a == r {
			return true
		}
	}
	return false
}
