// Package authz holds the membership and team-role records the access
// gate (internal/access) decides against. The backing tables are
// free-form; this package models just the role semantics.
package authz

import "github.com/go-playground/validator/v10"

// MemberRole is a direct project-membership role.
type MemberRole string

const (
	RoleViewer MemberRole = "VIEWER"
	RoleEditor MemberRole = "EDITOR"
	RoleAdmin  MemberRole = "ADMIN"
)

// TeamRole is a user's role within a team a project may be attached to.
type TeamRole string

const (
	TeamAdministrator TeamRole = "ADMINISTRATOR"
	TeamManager       TeamRole = "MANAGER"
	TeamMember        TeamRole = "MEMBER"
	TeamObserver      TeamRole = "OBSERVER"
)

// Project is the subset of project metadata the Access Gate needs.
type Project struct {
	ID        string
	CreatorID string
	TeamID    string // empty if not attached to a team
}

// ProjectMember is a direct project-membership record.
type ProjectMember struct {
	ProjectID string     `validate:"required"`
	UserID    string     `validate:"required"`
	Role      MemberRole `validate:"required,oneof=VIEWER EDITOR ADMIN"`
}

// TeamMembership is a user's role within a team.
type TeamMembership struct {
	TeamID string   `validate:"required"`
	UserID string   `validate:"required"`
	Role   TeamRole `validate:"required,oneof=ADMINISTRATOR MANAGER MEMBER OBSERVER"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRecord checks a membership record's struct tags before it is
// written to a Directory. Lookups never validate; only writes do.
func ValidateRecord(rec any) error {
	return validate.Struct(rec)
}

// Directory answers the three lookups CanEdit/CanJoin need.
// Implementations back it with whatever store owns the project,
// membership, and team tables; only the contract matters here.
type Directory interface {
	Project(projectID string) (Project, bool)
	Member(projectID, userID string) (ProjectMember, bool)
	TeamRole(teamID, userID string) (TeamRole, bool)
}
