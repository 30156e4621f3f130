// Package v1 contains the HTTP routes of the credential service.
package v1

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/catalyst-dev/catalyst-creds/pkg/auth"
	"github.com/catalyst-dev/catalyst-creds/pkg/errors"
	"github.com/catalyst-dev/catalyst-creds/pkg/githubapp"
	"github.com/catalyst-dev/catalyst-creds/pkg/logger"
	"github.com/catalyst-dev/catalyst-creds/pkg/telemetry"
)

// CredentialIssuer is the issuance surface the delivery endpoints expose.
type CredentialIssuer interface {
	IssueGitToken(ctx context.Context, actor, namespace, requestedInstallationID string) (githubapp.Token, error)
	IssueSecretBundle(ctx context.Context, actor, environmentID string) (map[string]string, error)
}

// secretBundleResponse is the body of the internal secrets endpoint.
type secretBundleResponse struct {
	Secrets map[string]string `json:"secrets"`
}

// InternalSecretsRouter serves resolved secret bundles to the platform
// orchestrator. Any cluster-authenticated identity may call it; the
// orchestrator provisions environments across all tenants.
func InternalSecretsRouter(issuer CredentialIssuer, metrics *telemetry.Metrics) http.Handler {
	routes := &deliveryRoutes{issuer: issuer, metrics: metrics}
	r := chi.NewRouter()
	r.Get("/{environmentId}", routes.getSecretBundle)
	return r
}

// GitTokenRouter serves short-lived git credentials to pods. The
// requested installation id must match the caller's namespace binding.
func GitTokenRouter(issuer CredentialIssuer, metrics *telemetry.Metrics) http.Handler {
	routes := &deliveryRoutes{issuer: issuer, metrics: metrics}
	r := chi.NewRouter()
	r.Get("/{installationId}", routes.getGitToken)
	return r
}

type deliveryRoutes struct {
	issuer  CredentialIssuer
	metrics *telemetry.Metrics
}

// getSecretBundle
//
// @Summary      Resolve the secret bundle for an environment
// @Description  Returns the effective name/value secret map for one environment.
// @Tags         delivery
// @Produce      json
// @Param        environmentId  path  string  true  "Environment id"
// @Success      200  {object}  secretBundleResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/internal/secrets/{environmentId} [get]
func (d *deliveryRoutes) getSecretBundle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	environmentID := chi.URLParam(r, "environmentId")

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		writeError(w, errors.NewUnauthenticatedError("no verified identity on request", nil))
		return
	}

	bundle, err := d.issuer.IssueSecretBundle(ctx, identity.Username(), environmentID)
	if err != nil {
		d.metrics.ObserveBundleIssuance("error")
		writeError(w, err)
		return
	}
	d.metrics.ObserveBundleIssuance("success")

	// Bundles hold live secret values; nothing between us and the
	// orchestrator may cache them.
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(secretBundleResponse{Secrets: bundle}); err != nil {
		logger.Errorf("Failed to write secret bundle response: %v", err)
	}
}

// getGitToken
//
// @Summary      Issue a git token for the calling pod
// @Description  Mints a short-lived installation token when the requested installation matches the caller's namespace binding.
// @Tags         delivery
// @Produce      text/plain
// @Param        installationId  path  string  true  "GitHub App installation id"
// @Success      200  {string}  string  "The token"
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /api/git-token/{installationId} [get]
func (d *deliveryRoutes) getGitToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	installationID := chi.URLParam(r, "installationId")

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		writeError(w, errors.NewUnauthenticatedError("no verified identity on request", nil))
		return
	}

	token, err := d.issuer.IssueGitToken(ctx, identity.Username(), identity.Namespace, installationID)
	if err != nil {
		if errors.IsForbidden(err) || errors.IsUnbound(err) {
			d.metrics.ObserveTokenIssuance("denied")
		} else {
			d.metrics.ObserveTokenIssuance("error")
		}
		writeError(w, err)
		return
	}
	d.metrics.ObserveTokenIssuance("success")

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte(token.Value)); err != nil {
		logger.Errorf("Failed to write token response: %v", err)
	}
}
