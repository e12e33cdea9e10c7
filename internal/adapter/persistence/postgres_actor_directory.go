package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/campusiq/campusiq/internal/domain"
	"github.com/campusiq/campusiq/internal/ports"
)

// PostgresActorDirectory resolves the live identity snapshot for a user
// from the users table. role_version is bumped whenever a user's role or
// department scope changes, which is what lets a pending decision detect
// that the grant it was issued under no longer holds.
type PostgresActorDirectory struct {
	db *sql.DB
}

// NewPostgresActorDirectory creates a new PostgreSQL actor directory
func NewPostgresActorDirectory(db *sql.DB) ports.ActorDirectory {
	return &PostgresActorDirectory{db: db}
}

// Lookup returns the current actor snapshot for the user
func (d *PostgresActorDirectory) Lookup(ctx context.Context, userID string) (domain.Actor, error) {
	query := `
		SELECT user_id, role, COALESCE(department_scope, ''), role_version
		FROM users
		WHERE user_id = $1`

	var actor domain.Actor
	var role string
	err := d.db.QueryRowContext(ctx, query, userID).Scan(
		&actor.UserID,
		&role,
		&actor.DepartmentScope,
		&actor.RoleVersion,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Actor{}, domain.ErrStaleActor
		}
		return domain.Actor{}, fmt.Errorf("failed to look up actor %s: %w", userID, err)
	}
	actor.Role = domain.Role(role)
	return actor, nil
}
