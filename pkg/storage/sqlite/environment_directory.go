package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/catalyst-dev/catalyst-creds/pkg/secrets"
	"github.com/catalyst-dev/catalyst-creds/pkg/storage"
)

// EnvironmentDirectory implements storage.EnvironmentDirectory against the
// platform's environments table. The table is owned by the dashboard's own
// migrations; this subsystem only reads it.
type EnvironmentDirectory struct {
	db *sql.DB
}

// NewEnvironmentDirectory creates a directory reading from db.
func NewEnvironmentDirectory(db *DB) *EnvironmentDirectory {
	return &EnvironmentDirectory{db: db.DB()}
}

var _ storage.EnvironmentDirectory = (*EnvironmentDirectory)(nil)

// Lookup returns the tenant coordinates of an environment, or ErrNotFound.
func (d *EnvironmentDirectory) Lookup(ctx context.Context, environmentID string) (storage.EnvironmentRecord, error) {
	var (
		record  storage.EnvironmentRecord
		envType string
	)

	err := d.db.QueryRowContext(ctx,
		`SELECT id, team_id, project_id, environment_type
		 FROM environments
		 WHERE id = ?`,
		environmentID,
	).Scan(&record.EnvironmentID, &record.TeamID, &record.ProjectID, &envType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.EnvironmentRecord{}, storage.ErrNotFound
		}
		return storage.EnvironmentRecord{}, fmt.Errorf("looking up environment: %w", err)
	}

	record.EnvironmentType = secrets.EnvironmentType(envType)
	return record, nil
}
