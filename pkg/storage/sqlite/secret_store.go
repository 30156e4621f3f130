package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/catalyst-dev/catalyst-creds/pkg/secrets"
	"github.com/catalyst-dev/catalyst-creds/pkg/storage"
)

// SecretStore implements storage.SecretStore using SQLite.
type SecretStore struct {
	wrapper *DB
	db      *sql.DB
}

// NewSecretStore creates a new SQLite-backed SecretStore.
func NewSecretStore(db *DB) *SecretStore {
	return &SecretStore{wrapper: db, db: db.DB()}
}

// Close closes the underlying database connection.
func (s *SecretStore) Close() error {
	return s.wrapper.Close()
}

var _ storage.SecretStore = (*SecretStore)(nil)

// secretColumns is the SELECT column list shared by Get and List queries.
const secretColumns = `id, scope_level, team_id, project_id, environment_type,
			environment_id, name, description, ciphertext, iv, auth_tag, created_at, updated_at`

// List returns all secrets attached to exactly the given scope.
func (s *SecretStore) List(ctx context.Context, scope secrets.Scope) ([]secrets.Secret, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+secretColumns+`
		 FROM secrets
		 WHERE scope_level = ? AND team_id = ? AND project_id = ?
		   AND environment_type = ? AND environment_id = ?
		 ORDER BY name`,
		scopeParams(scope)...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying secrets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []secrets.Secret
	for rows.Next() {
		secret, err := scanSecret(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, secret)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating secret rows: %w", err)
	}

	return result, nil
}

// Get retrieves one secret by scope and name.
func (s *SecretStore) Get(ctx context.Context, scope secrets.Scope, name string) (secrets.Secret, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+secretColumns+`
		 FROM secrets
		 WHERE scope_level = ? AND team_id = ? AND project_id = ?
		   AND environment_type = ? AND environment_id = ? AND name = ?`,
		append(scopeParams(scope), name)...,
	)

	secret, err := scanSecret(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return secrets.Secret{}, storage.ErrNotFound
		}
		return secrets.Secret{}, err
	}
	return secret, nil
}

// Create stores a new secret. A (scope, name) collision returns ErrAlreadyExists.
func (s *SecretStore) Create(ctx context.Context, secret secrets.Secret) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO secrets (
			id, scope_level, team_id, project_id, environment_type, environment_id,
			name, description, ciphertext, iv, auth_tag, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		secret.ID,
		string(secret.Scope.Level),
		secret.Scope.TeamID,
		secret.Scope.ProjectID,
		string(secret.Scope.EnvironmentType),
		secret.Scope.EnvironmentID,
		secret.Name,
		secret.Description,
		secret.Encrypted.Ciphertext,
		secret.Encrypted.IV,
		secret.Encrypted.AuthTag,
		secret.CreatedAt.UTC().Format(time.RFC3339Nano),
		secret.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting secret: %w", err)
	}
	return nil
}

// Update overwrites the encrypted value and description of an existing secret.
func (s *SecretStore) Update(ctx context.Context, secret secrets.Secret) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE secrets
		 SET description = ?, ciphertext = ?, iv = ?, auth_tag = ?, updated_at = ?
		 WHERE scope_level = ? AND team_id = ? AND project_id = ?
		   AND environment_type = ? AND environment_id = ? AND name = ?`,
		append([]any{
			secret.Description,
			secret.Encrypted.Ciphertext,
			secret.Encrypted.IV,
			secret.Encrypted.AuthTag,
			secret.UpdatedAt.UTC().Format(time.RFC3339Nano),
		}, append(scopeParams(secret.Scope), secret.Name)...)...,
	)
	if err != nil {
		return fmt.Errorf("updating secret: %w", err)
	}
	return requireOneRow(res)
}

// Delete removes a secret by scope and name.
func (s *SecretStore) Delete(ctx context.Context, scope secrets.Scope, name string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM secrets
		 WHERE scope_level = ? AND team_id = ? AND project_id = ?
		   AND environment_type = ? AND environment_id = ? AND name = ?`,
		append(scopeParams(scope), name)...,
	)
	if err != nil {
		return fmt.Errorf("deleting secret: %w", err)
	}
	return requireOneRow(res)
}

// scopeParams expands a scope into the five positional parameters used by
// every scope-filtered query, in column order.
func scopeParams(scope secrets.Scope) []any {
	return []any{
		string(scope.Level),
		scope.TeamID,
		scope.ProjectID,
		string(scope.EnvironmentType),
		scope.EnvironmentID,
	}
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSecret(row rowScanner) (secrets.Secret, error) {
	var (
		secret               secrets.Secret
		scopeLevel           string
		envType              string
		createdAt, updatedAt string
	)

	err := row.Scan(
		&secret.ID,
		&scopeLevel,
		&secret.Scope.TeamID,
		&secret.Scope.ProjectID,
		&envType,
		&secret.Scope.EnvironmentID,
		&secret.Name,
		&secret.Description,
		&secret.Encrypted.Ciphertext,
		&secret.Encrypted.IV,
		&secret.Encrypted.AuthTag,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return secrets.Secret{}, err
		}
		return secrets.Secret{}, fmt.Errorf("scanning secret row: %w", err)
	}

	secret.Scope.Level = secrets.ScopeLevel(scopeLevel)
	secret.Scope.EnvironmentType = secrets.EnvironmentType(envType)

	if secret.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return secrets.Secret{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if secret.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return secrets.Secret{}, fmt.Errorf("parsing updated_at: %w", err)
	}

	return secret, nil
}

// requireOneRow converts a zero-row write into ErrNotFound.
func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// isUniqueViolation checks for a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
