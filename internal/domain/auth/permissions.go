package auth

import "context"

const (
	PermAttendanceRead      = "attendance.read"
	PermAttendanceReconcile = "attendance.reconcile"
	PermPayrollRead         = "payroll.read"
	PermPayrollWrite        = "payroll.write"
	PermJobsRead            = "jobs.read"
	PermAuditRead           = "audit.read"
)

const (
	RoleManager      = "manager"
	RolePayrollAdmin = "payroll_admin"
	RoleAuditor      = "auditor"
	RoleSystemAdmin  = "system_admin"
)

var RolePermissions = map[string][]string{
	RoleManager: {
		PermAttendanceRead,
		PermAttendanceReconcile,
	},
	RolePayrollAdmin: {
		PermAttendanceRead,
		PermAttendanceReconcile,
		PermPayrollRead,
		PermPayrollWrite,
		PermJobsRead,
	},
	RoleAuditor: {
		PermAttendanceRead,
		PermPayrollRead,
		PermAuditRead,
	},
	RoleSystemAdmin: {
		PermAttendanceRead,
		PermAttendanceReconcile,
		PermPayrollRead,
		PermPayrollWrite,
		PermJobsRead,
		PermAuditRead,
	},
}

// StaticPermissions answers permission checks from RolePermissions. Roles are
// issued inside tokens by the identity provider, so there is nothing to look
// up per request.
type StaticPermissions struct {
	grants map[string]map[string]bool
}

func NewStaticPermissions(roles map[string][]string) *StaticPermissions {
	grants := make(map[string]map[string]bool, len(roles))
	for role, perms := range roles {
		set := make(map[string]bool, len(perms))
		for _, p := range perms {
			set[p] = true
		}
		grants[role] = set
	}
	return &StaticPermissions{grants: grants}
}

func (s *StaticPermissions) HasPermission(_ context.Context, role, permission string) (bool, error) {
	return s.grants[role][permission], nil
}
