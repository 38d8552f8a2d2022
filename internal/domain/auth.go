package domain

import "strings"

// Role enumerates the callers recognised by the workflow.
type Role string

const (
	RoleClerk      Role = "CLERK"
	RoleDC         Role = "DC"
	RoleSuperUser  Role = "SUPER_USER"
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleRoot       Role = "ROOT"
)

var roleSlugs = map[Role]string{
	RoleClerk:      "clerk",
	RoleDC:         "dc",
	RoleSuperUser:  "superuser",
	RoleSuperAdmin: "superadmin",
	RoleRoot:       "root",
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleSlugs[r]
	return ok
}

// Slug is the lowercase form used in URLs.
func (r Role) Slug() string {
	return roleSlugs[r]
}

// ParseRole accepts either the canonical name or the URL slug.
func ParseRole(raw string) (Role, bool) {
	upper := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if upper.Valid() {
		return upper, true
	}
	lower := strings.ToLower(strings.TrimSpace(raw))
	for role, slug := range roleSlugs {
		if slug == lower {
			return role, true
		}
	}
	return "", false
}

// Principal is the authenticated caller of a single request.
type Principal struct {
	SubjectID string
	Role      Role
}
