package access

import (
	"testing"

	"github.com/sumatoshi-tech/collabgraph/internal/authz"
)

func TestCanEditAllowsTheProjectCreator(t *testing.T) {
	dir := authz.NewMemoryDirectory()
	dir.PutProject(authz.Project{ID: "p1", CreatorID: "owner"})
	g := New(dir)

	if !g.CanEdit("owner", "p1") {
		t.Fatal("want the project creator to always be able to edit")
	}
}

func TestCanEditDeniesUnknownProject(t *testing.T) {
	g := New(authz.NewMemoryDirectory())
	if g.CanEdit("anyone", "ghost") {
		t.Fatal("want a nonexistent project to deny edit, not error")
	}
}

func TestCanEditAllowsDirectEditorButNotViewer(t *testing.T) {
	dir := authz.NewMemoryDirectory()
	dir.PutProject(authz.Project{ID: "p1", CreatorID: "owner"})
	dir.PutMember(authz.ProjectMember{ProjectID: "p1", UserID: "editor", Role: authz.RoleEditor})
	dir.PutMember(authz.ProjectMember{ProjectID: "p1", UserID: "viewer", Role: authz.RoleViewer})
	g := New(dir)

	if !g.CanEdit("editor", "p1") {
		t.Fatal("want a direct EDITOR member to be able to edit")
	}
	if g.CanEdit("viewer", "p1") {
		t.Fatal("want a direct VIEWER member to be denied edit")
	}
}

func TestCanEditAllowsTeamRolesButNotObserver(t *testing.T) {
	dir := authz.NewMemoryDirectory()
	dir.PutProject(authz.Project{ID: "p1", CreatorID: "owner", TeamID: "team1"})
	dir.PutTeamRole("team1", "manager", authz.TeamManager)
	dir.PutTeamRole("team1", "observer", authz.TeamObserver)
	g := New(dir)

	if !g.CanEdit("manager", "p1") {
		t.Fatal("want a team MANAGER to be able to edit")
	}
	if g.CanEdit("observer", "p1") {
		t.Fatal("want a team OBSERVER to be denied edit")
	}
}

func TestCanJoinAcceptsTeamObserverWhereCanEditDoesNot(t *testing.T) {
	dir := authz.NewMemoryDirectory()
	dir.PutProject(authz.Project{ID: "p1", CreatorID: "owner", TeamID: "team1"})
	dir.PutTeamRole("team1", "observer", authz.TeamObserver)
	g := New(dir)

	if !g.CanJoin("observer", "p1") {
		t.Fatal("want a team OBSERVER to be able to join")
	}
	if g.CanEdit("observer", "p1") {
		t.Fatal("CanEdit must still reject the OBSERVER role")
	}
}

func TestCanEditDeniesUnaffiliatedUser(t *testing.T) {
	dir := authz.NewMemoryDirectory()
	dir.PutProject(authz.Project{ID: "p1", CreatorID: "owner"})
	g := New(dir)

	if g.CanEdit("stranger", "p1") {
		t.Fatal("want a user with no project/team relationship to be denied")
	}
}

func TestCanJoinWithTeamConsultsHintOnlyWhenUnattached(t *testing.T) {
	dir := authz.NewMemoryDirectory()
	dir.PutProject(authz.Project{ID: "unattached", CreatorID: "owner"})
	dir.PutProject(authz.Project{ID: "attached", CreatorID: "owner", TeamID: "team1"})
	dir.PutTeamRole("team2", "member", authz.TeamMember)
	g := New(dir)

	if !g.CanJoinWithTeam("member", "unattached", "team2") {
		t.Fatal("want the payload teamId honored when the directory records no attachment")
	}
	if g.CanJoinWithTeam("member", "attached", "team2") {
		t.Fatal("the directory's own attachment must win over the payload teamId")
	}
	if g.CanJoinWithTeam("stranger", "unattached", "team2") {
		t.Fatal("a user with no role in the hinted team must still be denied")
	}
}
