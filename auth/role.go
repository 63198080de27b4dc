package auth

// Role is the closed set of account roles.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleHR       Role = "hr"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleEmployee:
		return RoleEmployee, true
	case RoleHR:
		return RoleHR, true
	}
	return "", false
}

func (r Role) String() string { return string(r) }

// Capability names an operation that needs a role check.
type Capability int

const (
	CapViewAssets Capability = iota
	CapRequestAsset
	CapReturnAsset
	CapManageAssets
	CapDecideRequests
	CapManageEmployees
	CapAssignAssets
	CapManageSubscription
	CapViewStats
)

var grants = map[Role]map[Capability]bool{
	RoleEmployee: {
		CapViewAssets:   true,
		CapRequestAsset: true,
		CapReturnAsset:  true,
	},
	RoleHR: {
		CapViewAssets:         true,
		CapManageAssets:       true,
		CapDecideRequests:     true,
		CapManageEmployees:    true,
		CapAssignAssets:       true,
		CapManageSubscription: true,
		CapViewStats:          true,
	},
}

// Allow reports whether role may perform capability. Unknown roles are denied.
func Allow(role Role, capability Capability) bool {
	return grants[role][capability]
}
