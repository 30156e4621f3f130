// Package storage provides domain-specific storage interfaces for the
// credential service.
package storage

import (
	"context"

	"github.com/catalyst-dev/catalyst-creds/pkg/secrets"
)

// SecretStore defines the interface for managing encrypted secret persistence.
// Implementations store ciphertext only; encryption happens above this layer.
type SecretStore = secrets.SecretStore

// EnvironmentDirectory resolves an environment id to its owning tenant.
// The backing table belongs to the platform, not to this subsystem; the
// directory only ever reads it.
type EnvironmentDirectory interface {
	// Lookup returns the tenant coordinates of an environment, or ErrNotFound.
	Lookup(ctx context.Context, environmentID string) (EnvironmentRecord, error)
}

// EnvironmentRecord is the tenant coordinates of one deployment target.
type EnvironmentRecord struct {
	EnvironmentID   string
	TeamID          string
	ProjectID       string
	EnvironmentType secrets.EnvironmentType
}
