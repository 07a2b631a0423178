// Package models holds the team/role registry record types.
package models

import (
	dErrors "portrait/pkg/domain-errors"
)

// RoleType is a team role, ordered by ascending authority. Owner is implicit
// for the team's own identity and is never stored.
type RoleType uint8

const (
	RoleMember RoleType = iota
	RoleEditor
	RoleAdmin
	RoleCoOwner
	RoleOwner
)

var roleNames = map[RoleType]string{
	RoleMember:  "member",
	RoleEditor:  "editor",
	RoleAdmin:   "admin",
	RoleCoOwner: "co_owner",
	RoleOwner:   "owner",
}

func (r RoleType) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Storable reports whether the role may be recorded. Owner exists only
// implicitly.
func (r RoleType) Storable() bool {
	return r <= RoleCoOwner
}

// CanAdminister reports whether the role may assign or demote roles on the
// team.
func (r RoleType) CanAdminister() bool {
	return r >= RoleAdmin
}

// ParseRole maps a role name to its RoleType.
func ParseRole(s string) (RoleType, error) {
	for role, name := range roleNames {
		if name == s {
			return role, nil
		}
	}
	return 0, dErrors.Newf(dErrors.CodeBadRequest, "unknown role %q", s)
}

// TeamRoleData is the consent record for one (team, member) pair. The
// relationship grants RoleType only while both flags are set.
type TeamRoleData struct {
	RoleType    RoleType `json:"role_type"`
	HasAssigned bool     `json:"has_assigned"`
	HasAccepted bool     `json:"has_accepted"`
}

// Active reports whether the role is in effect.
func (d TeamRoleData) Active() bool {
	return d.HasAssigned && d.HasAccepted
}
