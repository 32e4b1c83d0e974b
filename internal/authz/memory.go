package authz

import "sync"

// MemoryDirectory is an in-process Directory for tests and
// single-instance deployments without a membership database.
type MemoryDirectory struct {
	mu       sync.RWMutex
	projects map[string]Project
	members  map[string]ProjectMember // key: projectID+"/"+userID
	teams    map[string]TeamRole      // key: teamID+"/"+userID
}

// NewMemoryDirectory returns an empty MemoryDirectory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		projects: map[string]Project{},
		members:  map[string]ProjectMember{},
		teams:    map[string]TeamRole{},
	}
}

func (d *MemoryDirectory) PutProject(p Project) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.projects[p.ID] = p
}

func (d *MemoryDirectory) PutMember(m ProjectMember) error {
	if err := ValidateRecord(m); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[m.ProjectID+"/"+m.UserID] = m
	return nil
}

func (d *MemoryDirectory) PutTeamRole(teamID, userID string, role TeamRole) error {
	if err := ValidateRecord(TeamMembership{TeamID: teamID, UserID: userID, Role: role}); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.teams[teamID+"/"+userID] = role
	return nil
}

func (d *MemoryDirectory) Project(projectID string) (Project, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.projects[projectID]
	return p, ok
}

func (d *MemoryDirectory) Member(projectID, userID string) (ProjectMember, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.members[projectID+"/"+userID]
	return m, ok
}

func (d *MemoryDirectory) TeamRole(teamID, userID string) (TeamRole, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.teams[teamID+"/"+userID]
	return r, ok
}
