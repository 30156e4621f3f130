package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalyst-dev/catalyst-creds/pkg/auth"
	"github.com/catalyst-dev/catalyst-creds/pkg/errors"
	"github.com/catalyst-dev/catalyst-creds/pkg/githubapp"
	"github.com/catalyst-dev/catalyst-creds/pkg/telemetry"
)

type stubIssuer struct {
	token     githubapp.Token
	tokenErr  error
	bundle    map[string]string
	bundleErr error

	gotNamespace      string
	gotInstallationID string
	gotEnvironmentID  string
}

func (s *stubIssuer) IssueGitToken(_ context.Context, _, namespace, requestedInstallationID string) (githubapp.Token, error) {
	s.gotNamespace = namespace
	s.gotInstallationID = requestedInstallationID
	return s.token, s.tokenErr
}

func (s *stubIssuer) IssueSecretBundle(_ context.Context, _, environmentID string) (map[string]string, error) {
	s.gotEnvironmentID = environmentID
	return s.bundle, s.bundleErr
}

func identityRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	identity := auth.VerifiedIdentity{Namespace: "acme-web-app-main", SubjectName: "default"}
	return req.WithContext(auth.WithIdentity(req.Context(), identity))
}

func TestGetSecretBundle(t *testing.T) {
	t.Parallel()

	issuer := &stubIssuer{bundle: map[string]string{"DATABASE_URL": "postgres://prod"}}
	handler := InternalSecretsRouter(issuer, telemetry.NewMetrics())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, identityRequest(http.MethodGet, "/env-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "env-1", issuer.gotEnvironmentID)

	var body secretBundleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"DATABASE_URL": "postgres://prod"}, body.Secrets)
}

func TestGetSecretBundleErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "unknown environment", err: errors.NewNotFoundError("environment ghost not found", nil), wantStatus: http.StatusNotFound},
		{name: "resolution failure", err: errors.NewInternalError("store unavailable", nil), wantStatus: http.StatusInternalServerError},
		{name: "decryption failure", err: errors.NewDecryptionError("failed to decrypt value", nil), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := InternalSecretsRouter(&stubIssuer{bundleErr: tt.err}, telemetry.NewMetrics())
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, identityRequest(http.MethodGet, "/env-1"))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestGetSecretBundleWithoutIdentity(t *testing.T) {
	t.Parallel()

	handler := InternalSecretsRouter(&stubIssuer{}, telemetry.NewMetrics())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/env-1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetGitToken(t *testing.T) {
	t.Parallel()

	issuer := &stubIssuer{token: githubapp.Token{Value: "ghs_minted", ExpiresAt: time.Now().Add(time.Hour)}}
	handler := GitTokenRouter(issuer, telemetry.NewMetrics())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, identityRequest(http.MethodGet, "/12345678"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ghs_minted", rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "acme-web-app-main", issuer.gotNamespace, "the binding namespace must come from the verified identity")
	assert.Equal(t, "12345678", issuer.gotInstallationID)
}

func TestGetGitTokenErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "mismatched binding", err: errors.NewForbiddenError("not bound to installation", nil), wantStatus: http.StatusForbidden},
		{name: "unbound namespace", err: errors.NewUnboundError("no tenant labels", nil), wantStatus: http.StatusUnauthorized},
		{name: "github unavailable", err: errors.NewAuthBackendUnavailableError("github unreachable", nil), wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := GitTokenRouter(&stubIssuer{tokenErr: tt.err}, telemetry.NewMetrics())
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, identityRequest(http.MethodGet, "/12345678"))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotContains(t, rec.Body.String(), "ghs_", "no token material may leak on errors")
		})
	}
}

func TestGetGitTokenWithoutIdentity(t *testing.T) {
	t.Parallel()

	handler := GitTokenRouter(&stubIssuer{}, telemetry.NewMetrics())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/12345678", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
