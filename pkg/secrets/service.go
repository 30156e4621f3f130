package secrets

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/catalyst-dev/catalyst-creds/pkg/audit"
	"github.com/catalyst-dev/catalyst-creds/pkg/errors"
	"github.com/catalyst-dev/catalyst-creds/pkg/secrets/aes"
)

// Service is the write path for tenant secrets. All plaintext passes through
// the cipher before it reaches the store; every mutation emits an audit event
// that carries the name, scope and actor but never the value.
type Service struct {
	store   SecretStore
	cipher  *aes.Cipher
	auditor *audit.Auditor
}

// NewService creates a Service.
func NewService(store SecretStore, cipher *aes.Cipher, auditor *audit.Auditor) *Service {
	return &Service{store: store, cipher: cipher, auditor: auditor}
}

// List returns the masked projection of all secrets at exactly the given scope.
func (s *Service) List(ctx context.Context, scope Scope) ([]Masked, error) {
	stored, err := s.store.List(ctx, scope)
	if err != nil {
		return nil, errors.NewInternalError("failed to list secrets", err)
	}

	masked := make([]Masked, 0, len(stored))
	for _, secret := range stored {
		masked = append(masked, secret.Masked())
	}
	return masked, nil
}

// Create encrypts plaintext and stores a new secret at scope. A concurrent
// duplicate create resolves to one winner; the loser receives a conflict error.
func (s *Service) Create(ctx context.Context, scope Scope, name, plaintext, description, actor string) (Secret, error) {
	if err := ValidateName(name); err != nil {
		return Secret{}, err
	}

	encrypted, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return Secret{}, errors.NewInternalError("failed to encrypt secret", err)
	}

	now := time.Now().UTC()
	secret := Secret{
		ID:          uuid.NewString(),
		Scope:       scope,
		Name:        name,
		Description: description,
		Encrypted:   encrypted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Create(ctx, secret); err != nil {
		if stderrors.Is(err, ErrAlreadyExists) {
			return Secret{}, errors.NewConflictError(
				fmt.Sprintf("secret %s already exists at %s", name, scope), err)
		}
		return Secret{}, errors.NewInternalError("failed to store secret", err)
	}

	s.recordMutation(ctx, audit.EventSecretCreated, actor, secret)
	return secret, nil
}

// Update re-encrypts and/or re-describes an existing secret. A nil plaintext
// keeps the stored ciphertext; a nil description keeps the stored description.
func (s *Service) Update(ctx context.Context, scope Scope, name string, plaintext, description *string, actor string) (Secret, error) {
	secret, err := s.get(ctx, scope, name)
	if err != nil {
		return Secret{}, err
	}

	if plaintext != nil {
		encrypted, err := s.cipher.Encrypt(*plaintext)
		if err != nil {
			return Secret{}, errors.NewInternalError("failed to encrypt secret", err)
		}
		secret.Encrypted = encrypted
	}
	if description != nil {
		secret.Description = *description
	}
	secret.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, secret); err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return Secret{}, notFound(scope, name, err)
		}
		return Secret{}, errors.NewInternalError("failed to update secret", err)
	}

	s.recordMutation(ctx, audit.EventSecretUpdated, actor, secret)
	return secret, nil
}

// Delete removes a secret and returns its last stored (encrypted) state.
func (s *Service) Delete(ctx context.Context, scope Scope, name, actor string) (Secret, error) {
	secret, err := s.get(ctx, scope, name)
	if err != nil {
		return Secret{}, err
	}

	if err := s.store.Delete(ctx, scope, name); err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return Secret{}, notFound(scope, name, err)
		}
		return Secret{}, errors.NewInternalError("failed to delete secret", err)
	}

	s.recordMutation(ctx, audit.EventSecretDeleted, actor, secret)
	return secret, nil
}

func (s *Service) get(ctx context.Context, scope Scope, name string) (Secret, error) {
	secret, err := s.store.Get(ctx, scope, name)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return Secret{}, notFound(scope, name, err)
		}
		return Secret{}, errors.NewInternalError("failed to load secret", err)
	}
	return secret, nil
}

func (s *Service) recordMutation(ctx context.Context, eventType, actor string, secret Secret) {
	s.auditor.Record(ctx, eventType, actor, audit.OutcomeSuccess, map[string]string{
		"name":  secret.Name,
		"scope": secret.Scope.String(),
	})
}

func notFound(scope Scope, name string, cause error) error {
	return errors.NewNotFoundError(fmt.Sprintf("secret %s not found at %s", name, scope), cause)
}
