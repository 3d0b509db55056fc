package models

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleInstructor Role = "INSTRUCTOR"
	RoleManager    Role = "MANAGER"
	RoleAdmin      Role = "ADMIN"
)

// Roles lists every role, least privileged first.
var Roles = []Role{RoleStudent, RoleInstructor, RoleManager, RoleAdmin}

func ParseRole(s string) (Role, error) {
	switch role := Role(strings.ToUpper(strings.TrimSpace(s))); role {
	case RoleStudent, RoleInstructor, RoleManager, RoleAdmin:
		return role, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

type Capability string

const (
	CapRead        Capability = "read"
	CapProfile     Capability = "profile"
	CapWrite       Capability = "write"
	CapManageTeam  Capability = "manage_team"
	CapDelete      Capability = "delete"
	CapManageUsers Capability = "manage_users"
	CapAdmin       Capability = "admin"
)

var Capabilities = []Capability{
	CapRead, CapProfile, CapWrite, CapManageTeam, CapDelete, CapManageUsers, CapAdmin,
}

var (
	studentCaps    = capSet(CapRead, CapProfile)
	instructorCaps = capSet(CapRead, CapProfile, CapWrite)
	managerCaps    = capSet(CapRead, CapProfile, CapWrite, CapManageTeam)
	adminCaps      = capSet(Capabilities...)
)

func capSet(caps ...Capability) map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

func (r Role) capabilities() map[Capability]struct{} {
	switch r {
	case RoleStudent:
		return studentCaps
	case RoleInstructor:
		return instructorCaps
	case RoleManager:
		return managerCaps
	case RoleAdmin:
		return adminCaps
	default:
		return nil
	}
}

// Can reports whether the role holds the capability. Unknown roles hold
// nothing.
func (r Role) Can(c Capability) bool {
	_, ok := r.capabilities()[c]
	return ok
}

// Grants returns the role's capabilities in declaration order.
func (r Role) Grants() []Capability {
	out := make([]Capability, 0, len(Capabilities))
	for _, c := range Capabilities {
		if r.Can(c) {
			out = append(out, c)
		}
	}
	return out
}

func (r Role) Valid() bool {
	return r.capabilities() != nil
}
