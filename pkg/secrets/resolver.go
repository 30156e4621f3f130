package secrets

import (
	"context"
	"log/slog"

	"github.com/catalyst-dev/catalyst-creds/pkg/errors"
	"github.com/catalyst-dev/catalyst-creds/pkg/secrets/aes"
)

// Resolver merges scoped secret records into the effective value per name.
//
// Precedence is four tiers, later tiers overriding earlier ones by name:
// team, then project, then template (per environment type), then environment.
type Resolver struct {
	store  SecretStore
	cipher *aes.Cipher
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(store SecretStore, cipher *aes.Cipher, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, cipher: cipher, logger: logger}
}

// ResolveQuery selects which tiers participate in a resolution. TeamID is
// mandatory; each optional field enables its tier. EnvironmentID or
// EnvironmentType without ProjectID is a caller bug and fails fast.
type ResolveQuery struct {
	TeamID          string
	ProjectID       string
	EnvironmentType EnvironmentType
	EnvironmentID   string
}

// Resolve produces the effective secret map for a deployment target.
//
// A decryption failure for one record does not abort the others: the record
// is logged by name and scope and omitted from the result, so a degraded
// secret never propagates as an empty string.
func (r *Resolver) Resolve(ctx context.Context, query ResolveQuery) (map[string]ResolvedSecret, error) {
	scopes, err := query.scopes()
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]ResolvedSecret)
	for _, scope := range scopes {
		stored, err := r.store.List(ctx, scope)
		if err != nil {
			return nil, errors.NewInternalError("failed to list secrets for resolution", err)
		}
		r.overlay(resolved, stored)
	}

	return resolved, nil
}

// scopes expands the query into the participating tiers, in precedence order.
func (q ResolveQuery) scopes() ([]Scope, error) {
	if q.TeamID == "" {
		return nil, errors.NewInvalidArgumentError("team id is required", nil)
	}
	if q.EnvironmentID != "" && q.ProjectID == "" {
		return nil, errors.NewInvalidArgumentError(
			"environment id given without project id", nil)
	}
	if q.EnvironmentType != "" && q.ProjectID == "" {
		return nil, errors.NewInvalidArgumentError(
			"environment type given without project id", nil)
	}

	scopes := make([]Scope, 0, 4)

	scope, err := NewTeamScope(q.TeamID)
	if err != nil {
		return nil, err
	}
	scopes = append(scopes, scope)

	if q.ProjectID != "" {
		scope, err := NewProjectScope(q.TeamID, q.ProjectID)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, scope)
	}
	if q.EnvironmentType != "" {
		scope, err := NewTemplateScope(q.TeamID, q.ProjectID, q.EnvironmentType)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, scope)
	}
	if q.EnvironmentID != "" {
		scope, err := NewEnvironmentScope(q.TeamID, q.ProjectID, q.EnvironmentID)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, scope)
	}

	return scopes, nil
}

// overlay decrypts one tier and merges it over the accumulated result.
// Within a tier there is at most one row per name (store-level uniqueness),
// so no intra-tier tie-break is needed.
func (r *Resolver) overlay(resolved map[string]ResolvedSecret, stored []Secret) {
	for _, secret := range stored {
		value, err := r.cipher.Decrypt(secret.Encrypted)
		if err != nil {
			// Log the name and scope only; never the ciphertext or any
			// partial plaintext. The name is dropped from the bundle.
			r.logger.Warn("dropping undecryptable secret from resolution",
				"name", secret.Name,
				"scope", secret.Scope.String(),
			)
			continue
		}

		resolved[secret.Name] = ResolvedSecret{
			Name:        secret.Name,
			Value:       value,
			Source:      secret.Scope.Level,
			Description: secret.Description,
		}
	}
}
