package auth

import (
	"context"
	"fmt"
	"time"

	authv1 "k8s.io/api/authentication/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/catalyst-dev/catalyst-creds/pkg/errors"
)

// defaultReviewTimeout bounds the blocking call to the cluster auth API.
const defaultReviewTimeout = 10 * time.Second

// Validator validates bearer tokens against the cluster's TokenReview API.
type Validator struct {
	client  kubernetes.Interface
	timeout time.Duration
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithReviewTimeout overrides the per-call TokenReview timeout.
func WithReviewTimeout(timeout time.Duration) ValidatorOption {
	return func(v *Validator) {
		v.timeout = timeout
	}
}

// NewValidator creates a Validator using the given Kubernetes client.
func NewValidator(client kubernetes.Interface, opts ...ValidatorOption) *Validator {
	v := &Validator{client: client, timeout: defaultReviewTimeout}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate submits the token for review and returns the verified identity.
//
// A token the cluster rejects, or a subject that is not a service account,
// yields an unauthenticated error. An unreachable auth backend yields an
// auth-backend-unavailable error instead, so callers can back off and retry
// rather than caching a negative result.
func (v *Validator) Validate(ctx context.Context, token string) (VerifiedIdentity, error) {
	if token == "" {
		return VerifiedIdentity{}, errors.NewUnauthenticatedError("missing bearer token", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	review := &authv1.TokenReview{
		Spec: authv1.TokenReviewSpec{Token: token},
	}

	result, err := v.client.AuthenticationV1().TokenReviews().Create(ctx, review, metav1.CreateOptions{})
	if err != nil {
		return VerifiedIdentity{}, errors.NewAuthBackendUnavailableError(
			"token review request failed", err)
	}

	if result.Status.Error != "" {
		return VerifiedIdentity{}, errors.NewUnauthenticatedError(
			fmt.Sprintf("token review rejected: %s", result.Status.Error), nil)
	}
	if !result.Status.Authenticated {
		return VerifiedIdentity{}, errors.NewUnauthenticatedError("token is not authenticated", nil)
	}

	identity, ok := parseServiceAccount(result.Status.User.Username)
	if !ok {
		return VerifiedIdentity{}, errors.NewUnauthenticatedError(
			fmt.Sprintf("subject %q is not a service account", result.Status.User.Username), nil)
	}

	return identity, nil
}
