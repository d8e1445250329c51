package domain

import (
	"fmt"
	"strings"
)

// Role enumerates actor roles across tenants.
type Role string

const (
	RoleEmployee    Role = "Employee"
	RoleTechnician  Role = "Technician"
	RoleTeamLead    Role = "Team Lead"
	RoleAdmin       Role = "Admin"
	RoleSystemAdmin Role = "System Admin"
	RoleSuperAdmin  Role = "Super Admin"
)

var canonicalRoles = map[string]Role{
	"employee":    RoleEmployee,
	"technician":  RoleTechnician,
	"teamlead":    RoleTeamLead,
	"admin":       RoleAdmin,
	"systemadmin": RoleSystemAdmin,
	"superadmin":  RoleSuperAdmin,
}

// ParseRole converts a raw role string into the canonical Role. Matching ignores
// case, surrounding whitespace and word separators (space, '_' and '-').
func ParseRole(raw string) (Role, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
	if role, ok := canonicalRoles[key]; ok {
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleTechnician, RoleTeamLead, RoleAdmin, RoleSystemAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdministrator reports whether r may review tickets and read the audit log.
func (r Role) IsAdministrator() bool {
	return r == RoleAdmin || r == RoleSuperAdmin || r == RoleSystemAdmin
}

// CanAssign reports whether r may dispatch tickets to technicians.
func (r Role) CanAssign() bool {
	return r.IsAdministrator() || r == RoleTeamLead
}

func (r Role) String() string {
	return string(r)
}
