package authz

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// PostgresDirectory backs Directory with the project/projectMember/
// teamMember tables, using sqlx's struct-scanning Get over a
// *sql.DB opened with the pgx stdlib driver.
type PostgresDirectory struct {
	db *sqlx.DB
}

// NewPostgresDirectory wraps an already-open *sql.DB (pgx stdlib driver)
// in a sqlx handle for struct scanning.
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: sqlx.NewDb(db, "pgx")}
}

func (d *PostgresDirectory) Project(projectID string) (Project, bool) {
	var row struct {
		ID        string `db:"id"`
		CreatorID string `db:"creatorId"`
		TeamID    sql.NullString `db:"teamId"`
	}
	err := d.db.Get(&row, `SELECT id, "creatorId", "teamId" FROM project WHERE id = $1`, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, false
	}
	if err != nil {
		return Project{}, false
	}
	return Project{ID: row.ID, CreatorID: row.CreatorID, TeamID: row.TeamID.String}, true
}

func (d *PostgresDirectory) Member(projectID, userID string) (ProjectMember, bool) {
	var row struct {
		Role string `db:"role"`
	}
	err := d.db.Get(&row,
		`SELECT role FROM "projectMember" WHERE "projectId" = $1 AND "userId" = $2`, projectID, userID)
	if err != nil {
		return ProjectMember{}, false
	}
	return ProjectMember{ProjectID: projectID, UserID: userID, Role: MemberRole(row.Role)}, true
}

func (d *PostgresDirectory) TeamRole(teamID, userID string) (TeamRole, bool) {
	var role string
	err := d.db.Get(&role,
		`SELECT role FROM "teamMember" WHERE "teamId" = $1 AND "userId" = $2`, teamID, userID)
	if err != nil {
		return "", false
	}
	return TeamRole(role), true
}
