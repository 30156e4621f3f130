package tenant

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"

	"golang.org/x/sync/singleflight"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/catalyst-dev/catalyst-creds/api/v1alpha1"
	"github.com/catalyst-dev/catalyst-creds/pkg/errors"
	"github.com/catalyst-dev/catalyst-creds/pkg/labels"
	"github.com/catalyst-dev/catalyst-creds/pkg/logger"
	"github.com/catalyst-dev/catalyst-creds/pkg/namespaces"
)

// DefaultCacheTTL is how long a resolved binding is served from cache
// before the cluster is consulted again.
const DefaultCacheTTL = 30 * time.Second

// Binder resolves namespaces to tenant bindings by walking cluster state:
// the namespace's tenant labels name a team and project, and the Project
// resource in the team namespace names the GitHub installation. Every hop
// is mandatory; a gap anywhere means the namespace is unbound and the
// caller gets nothing.
type Binder struct {
	client   client.Client
	bindings *cache[Binding]
	group    singleflight.Group
}

// BinderOption configures a Binder.
type BinderOption func(*Binder)

// WithCacheTTL overrides the binding cache TTL. A zero or negative TTL
// disables caching entirely.
func WithCacheTTL(ttl time.Duration) BinderOption {
	return func(b *Binder) {
		b.bindings = newCache[Binding](ttl)
	}
}

// NewBinder creates a Binder backed by the given cluster client.
func NewBinder(c client.Client, opts ...BinderOption) *Binder {
	b := &Binder{
		client:   c,
		bindings: newCache[Binding](DefaultCacheTTL),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bind resolves the tenant binding for a namespace. It returns an unbound
// error when the namespace does not exist, carries no tenant labels, or its
// project declares no installation. Only successful resolutions are cached;
// failures always hit the cluster so that newly bound tenants are picked up
// immediately.
func (b *Binder) Bind(ctx context.Context, namespace string) (Binding, error) {
	if binding, ok := b.bindings.get(namespace); ok {
		return binding, nil
	}

	result, err, _ := b.group.Do(namespace, func() (any, error) {
		binding, err := b.resolve(ctx, namespace)
		if err != nil {
			return Binding{}, err
		}
		b.bindings.put(namespace, binding)
		return binding, nil
	})
	if err != nil {
		return Binding{}, err
	}
	return result.(Binding), nil
}

// Invalidate drops any cached binding for a namespace.
func (b *Binder) Invalidate(namespace string) {
	b.bindings.invalidate(namespace)
}

func (b *Binder) resolve(ctx context.Context, namespace string) (Binding, error) {
	var ns corev1.Namespace
	if err := b.client.Get(ctx, types.NamespacedName{Name: namespace}, &ns); err != nil {
		if apierrors.IsNotFound(err) {
			return Binding{}, errors.NewUnboundError(
				fmt.Sprintf("namespace %s does not exist", namespace), err)
		}
		return Binding{}, errors.NewAuthBackendUnavailableError(
			fmt.Sprintf("failed to read namespace %s", namespace), err)
	}

	tenant, ok := labels.TenantFromLabels(ns.Labels)
	if !ok || tenant.Project == "" {
		return Binding{}, errors.NewUnboundError(
			fmt.Sprintf("namespace %s carries no tenant labels", namespace), nil)
	}

	teamNamespace := namespaces.TeamNamespace(tenant.Team)
	var project v1alpha1.Project
	key := types.NamespacedName{Namespace: teamNamespace, Name: tenant.Project}
	if err := b.client.Get(ctx, key, &project); err != nil {
		if apierrors.IsNotFound(err) {
			return Binding{}, errors.NewUnboundError(
				fmt.Sprintf("project %s not found in namespace %s", tenant.Project, teamNamespace), err)
		}
		return Binding{}, errors.NewAuthBackendUnavailableError(
			fmt.Sprintf("failed to read project %s/%s", teamNamespace, tenant.Project), err)
	}

	installationID := project.Spec.GitHubInstallationId
	if installationID == "" {
		return Binding{}, errors.NewUnboundError(
			fmt.Sprintf("project %s/%s declares no GitHub installation", teamNamespace, tenant.Project), nil)
	}

	logger.Debugw("resolved tenant binding",
		"namespace", namespace,
		"team", tenant.Team,
		"project", tenant.Project,
		"installation_id", installationID)

	return Binding{
		Namespace:      namespace,
		Team:           tenant.Team,
		Project:        tenant.Project,
		InstallationID: installationID,
	}, nil
}
