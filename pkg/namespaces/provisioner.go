package namespaces

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/catalyst-dev/catalyst-creds/pkg/errors"
	"github.com/catalyst-dev/catalyst-creds/pkg/labels"
	"github.com/catalyst-dev/catalyst-creds/pkg/logger"
)

// Provisioner idempotently ensures tenant namespaces exist. Concurrent
// duplicate calls for the same tenant always converge on the same logical
// namespace: exactly one underlying create succeeds and the others observe
// AlreadyExists and treat it as success.
type Provisioner struct {
	client kubernetes.Interface
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(client kubernetes.Interface) *Provisioner {
	return &Provisioner{client: client}
}

// EnsureTeamNamespace ensures the team-level namespace exists and returns it.
func (p *Provisioner) EnsureTeamNamespace(ctx context.Context, team string) (*corev1.Namespace, error) {
	return p.ensure(ctx, TeamNamespace(team), labels.Tenant{Team: team})
}

// EnsureProjectNamespace ensures the project-level namespace exists and returns it.
func (p *Provisioner) EnsureProjectNamespace(ctx context.Context, team, project string) (*corev1.Namespace, error) {
	return p.ensure(ctx, ProjectNamespace(team, project), labels.Tenant{Team: team, Project: project})
}

func (p *Provisioner) ensure(ctx context.Context, name string, tenant labels.Tenant) (*corev1.Namespace, error) {
	if !IsValidName(name) {
		return nil, errors.NewInvalidArgumentError(
			fmt.Sprintf("generated namespace name %q is not DNS-1123 compliant", name), nil)
	}

	namespaceLabels := make(map[string]string)
	labels.AddTenantLabels(namespaceLabels, tenant)

	namespace := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: namespaceLabels,
		},
	}

	created, err := p.client.CoreV1().Namespaces().Create(ctx, namespace, metav1.CreateOptions{})
	if err == nil {
		logger.Infow("provisioned tenant namespace", "namespace", name, "team", tenant.Team, "project", tenant.Project)
		return created, nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to create namespace %s", name), err)
	}

	// Lost the create race (or the namespace predates us); fetch the winner.
	existing, err := p.client.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to fetch existing namespace %s", name), err)
	}
	return existing, nil
}
