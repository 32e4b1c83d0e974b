// Package access is the gate deciding whether a user may edit or
// join a project, in a fixed priority order.
package access

import "github.com/sumatoshi-tech/collabgraph/internal/authz"

// editingTeamRoles grants edit access through a project's attached team
// when the project is attached to a team.
var editingTeamRoles = map[authz.TeamRole]bool{
	authz.TeamAdministrator: true,
	authz.TeamManager:       true,
	authz.TeamMember:        true,
}

// joiningTeamRoles additionally accepts OBSERVER for join_project, which
// only needs read capability, not edit authority.
var joiningTeamRoles = map[authz.TeamRole]bool{
	authz.TeamAdministrator: true,
	authz.TeamManager:       true,
	authz.TeamMember:        true,
	authz.TeamObserver:      true,
}

// Gate answers CanEdit/CanJoin against an authz.Directory.
type Gate struct {
	dir authz.Directory
}

// New returns a Gate backed by dir.
func New(dir authz.Directory) *Gate {
	return &Gate{dir: dir}
}

// CanEdit answers whether userID may submit mutating operations against
// projectID. A project that does not exist answers false, not a
// distinct error.
func (g *Gate) CanEdit(userID, projectID string) bool {
	return g.decide(userID, projectID, "", editingTeamRoles)
}

// CanJoin answers whether userID may join projectID's collaboration
// session (read + edit-socket capability). This additionally accepts
// the OBSERVER team role that CanEdit rejects.
func (g *Gate) CanJoin(userID, projectID string) bool {
	return g.decide(userID, projectID, "", joiningTeamRoles)
}

// CanJoinWithTeam is CanJoin with the client-supplied team id from a
// join_project payload. The directory's own project->team attachment
// always wins; the hint is only consulted when the directory records
// no attachment.
func (g *Gate) CanJoinWithTeam(userID, projectID, teamID string) bool {
	return g.decide(userID, projectID, teamID, joiningTeamRoles)
}

func (g *Gate) decide(userID, projectID, teamHint string, teamRoles map[authz.TeamRole]bool) bool {
	project, ok := g.dir.Project(projectID)
	if !ok {
		return false
	}

	if project.CreatorID == userID {
		return true
	}

	if member, ok := g.dir.Member(projectID, userID); ok && member.Role != authz.RoleViewer {
		return true
	}

	teamID := project.TeamID
	if teamID == "" {
		teamID = teamHint
	}
	if teamID != "" {
		if role, ok := g.dir.TeamRole(teamID, userID); ok && teamRoles[role] {
			return true
		}
	}

	return false
}
