package models

// Operation names a guarded server operation together with the capability
// the caller's role must hold.
type Operation struct {
	Name     string
	Requires Capability
}

var (
	OpViewDashboard   = Operation{Name: "dashboard.view", Requires: CapRead}
	OpValidateSession = Operation{Name: "security.validate", Requires: CapRead}
	OpRecordAudit     = Operation{Name: "security.audit", Requires: CapRead}
	OpUpdateProfile   = Operation{Name: "profile.update", Requires: CapProfile}
	OpListUsers       = Operation{Name: "users.list", Requires: CapAdmin}
	OpUserStats       = Operation{Name: "users.stats", Requires: CapAdmin}
	OpGetUser         = Operation{Name: "users.get", Requires: CapAdmin}
	OpChangeRole      = Operation{Name: "users.role", Requires: CapAdmin}
	OpChangeStatus    = Operation{Name: "users.status", Requires: CapAdmin}
	OpDeleteUser      = Operation{Name: "users.delete", Requires: CapAdmin}
)

// Operations is the full table of guarded operations.
var Operations = []Operation{
	OpViewDashboard,
	OpValidateSession,
	OpRecordAudit,
	OpUpdateProfile,
	OpListUsers,
	OpUserStats,
	OpGetUser,
	OpChangeRole,
	OpChangeStatus,
	OpDeleteUser,
}

// AllowedRoles returns the roles permitted to run op.
func (op Operation) AllowedRoles() []Role {
	var out []Role
	for _, r := range Roles {
		if r.Can(op.Requires) {
			out = append(out, r)
		}
	}
	return out
}
