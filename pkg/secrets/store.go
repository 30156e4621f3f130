package secrets

import (
	"context"
	stderrors "errors"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = stderrors.New("record not found")

	// ErrAlreadyExists is returned when a write loses a uniqueness race.
	ErrAlreadyExists = stderrors.New("record already exists")
)

// SecretStore defines the interface for managing encrypted secret persistence.
// Implementations store ciphertext only; encryption happens above this layer.
type SecretStore interface {
	// List returns all secrets attached to exactly the given scope.
	List(ctx context.Context, scope Scope) ([]Secret, error)
	// Get retrieves one secret by scope and name.
	Get(ctx context.Context, scope Scope, name string) (Secret, error)
	// Create stores a new secret. A (scope, name) collision returns ErrAlreadyExists.
	Create(ctx context.Context, secret Secret) error
	// Update overwrites the encrypted value and/or description of an existing secret.
	Update(ctx context.Context, secret Secret) error
	// Delete removes a secret by scope and name.
	Delete(ctx context.Context, scope Scope, name string) error
	// Close releases any resources held by the store.
	Close() error
}
