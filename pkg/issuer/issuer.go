// Package issuer turns a verified identity and its tenant binding into
// short-lived credentials: GitHub tokens for pods and resolved secret
// bundles for environment provisioning. Nothing it hands out is persisted.
package issuer

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/catalyst-dev/catalyst-creds/pkg/audit"
	"github.com/catalyst-dev/catalyst-creds/pkg/errors"
	"github.com/catalyst-dev/catalyst-creds/pkg/githubapp"
	"github.com/catalyst-dev/catalyst-creds/pkg/secrets"
	"github.com/catalyst-dev/catalyst-creds/pkg/storage"
	"github.com/catalyst-dev/catalyst-creds/pkg/tenant"

	"github.com/catalyst-dev/catalyst-creds/api/v1alpha1"
)

// TokenMinter mints installation access tokens from the external identity
// provider.
type TokenMinter interface {
	MintInstallationToken(ctx context.Context, installationID string) (githubapp.Token, error)
}

// NamespaceBinder resolves a namespace to its tenant binding.
type NamespaceBinder interface {
	Bind(ctx context.Context, namespace string) (tenant.Binding, error)
}

// BundleResolver resolves the effective secret set for a deployment target.
type BundleResolver interface {
	Resolve(ctx context.Context, query secrets.ResolveQuery) (map[string]secrets.ResolvedSecret, error)
}

// StaticTokenConfig is the narrowly scoped development bypass: when a
// project is bound to the "pat" sentinel and Enabled is set, the statically
// configured token is handed out instead of a minted one. It is never
// consulted when a real installation id is bound.
type StaticTokenConfig struct {
	Enabled bool
	Token   string
}

// Issuer implements credential issuance on top of the binder, the minter
// and the secret resolution engine.
type Issuer struct {
	binder      NamespaceBinder
	minter      TokenMinter
	directory   storage.EnvironmentDirectory
	resolver    BundleResolver
	auditor     *audit.Auditor
	staticToken StaticTokenConfig
}

// New creates an Issuer.
func New(
	binder NamespaceBinder,
	minter TokenMinter,
	directory storage.EnvironmentDirectory,
	resolver BundleResolver,
	auditor *audit.Auditor,
	staticToken StaticTokenConfig,
) *Issuer {
	return &Issuer{
		binder:      binder,
		minter:      minter,
		directory:   directory,
		resolver:    resolver,
		auditor:     auditor,
		staticToken: staticToken,
	}
}

// IssueGitToken issues a short-lived git credential for the workload
// identified by actor, running in namespace. The requested installation id
// must equal the one the namespace is bound to; anything else is a
// forbidden error regardless of whether the requested id exists.
func (i *Issuer) IssueGitToken(
	ctx context.Context, actor, namespace, requestedInstallationID string,
) (githubapp.Token, error) {
	binding, err := i.binder.Bind(ctx, namespace)
	if err != nil {
		i.auditor.Record(ctx, audit.EventGitTokenIssued, actor, audit.OutcomeDenied, map[string]string{
			"namespace": namespace,
		})
		return githubapp.Token{}, err
	}

	if requestedInstallationID != binding.InstallationID {
		i.auditor.Record(ctx, audit.EventGitTokenIssued, actor, audit.OutcomeDenied, map[string]string{
			"namespace":      namespace,
			"installation":   requestedInstallationID,
			"bound_to_other": "true",
		})
		return githubapp.Token{}, errors.NewForbiddenError(
			fmt.Sprintf("namespace %s is not bound to installation %s", namespace, requestedInstallationID), nil)
	}

	token, err := i.mint(ctx, binding)
	if err != nil {
		i.auditor.Record(ctx, audit.EventGitTokenIssued, actor, audit.OutcomeError, map[string]string{
			"namespace":    namespace,
			"installation": binding.InstallationID,
		})
		return githubapp.Token{}, err
	}

	i.auditor.Record(ctx, audit.EventGitTokenIssued, actor, audit.OutcomeSuccess, map[string]string{
		"namespace":    namespace,
		"installation": binding.InstallationID,
		"team":         binding.Team,
		"project":      binding.Project,
	})
	return token, nil
}

func (i *Issuer) mint(ctx context.Context, binding tenant.Binding) (githubapp.Token, error) {
	if binding.InstallationID == v1alpha1.InstallationPAT {
		if !i.staticToken.Enabled || i.staticToken.Token == "" {
			return githubapp.Token{}, errors.NewInternalError(
				"project is bound to the static token sentinel but the fallback is not enabled", nil)
		}
		// Static tokens have no server-side expiry; advertise a short one so
		// consumers still refresh.
		return githubapp.Token{
			Value:     i.staticToken.Token,
			ExpiresAt: time.Now().Add(time.Hour),
		}, nil
	}

	return i.minter.MintInstallationToken(ctx, binding.InstallationID)
}

// IssueSecretBundle resolves the effective secrets for an environment and
// flattens them to plain name/value pairs for injection into workloads.
// The source tier of each value is dropped; the consumer is a workload,
// not an auditor.
func (i *Issuer) IssueSecretBundle(ctx context.Context, actor, environmentID string) (map[string]string, error) {
	record, err := i.directory.Lookup(ctx, environmentID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NewNotFoundError(
				fmt.Sprintf("environment %s not found", environmentID), err)
		}
		return nil, errors.NewInternalError(
			fmt.Sprintf("failed to look up environment %s", environmentID), err)
	}

	resolved, err := i.resolver.Resolve(ctx, secrets.ResolveQuery{
		TeamID:          record.TeamID,
		ProjectID:       record.ProjectID,
		EnvironmentType: record.EnvironmentType,
		EnvironmentID:   record.EnvironmentID,
	})
	if err != nil {
		i.auditor.Record(ctx, audit.EventSecretBundleIssued, actor, audit.OutcomeError, map[string]string{
			"environment_id": environmentID,
		})
		return nil, err
	}

	bundle := make(map[string]string, len(resolved))
	for name, secret := range resolved {
		bundle[name] = secret.Value
	}

	i.auditor.Record(ctx, audit.EventSecretBundleIssued, actor, audit.OutcomeSuccess, map[string]string{
		"environment_id": environmentID,
		"team_id":        record.TeamID,
		"project_id":     record.ProjectID,
		"secret_count":   fmt.Sprintf("%d", len(bundle)),
	})
	return bundle, nil
}
