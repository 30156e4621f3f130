package api_test

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	authv1 "k8s.io/api/authentication/v1"
	k8sruntime "k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/catalyst-dev/catalyst-creds/pkg/api"
	"github.com/catalyst-dev/catalyst-creds/pkg/audit"
	"github.com/catalyst-dev/catalyst-creds/pkg/auth"
	"github.com/catalyst-dev/catalyst-creds/pkg/errors"
	"github.com/catalyst-dev/catalyst-creds/pkg/githubapp"
	"github.com/catalyst-dev/catalyst-creds/pkg/issuer"
	"github.com/catalyst-dev/catalyst-creds/pkg/secrets"
	"github.com/catalyst-dev/catalyst-creds/pkg/secrets/aes"
	"github.com/catalyst-dev/catalyst-creds/pkg/storage/sqlite"
	"github.com/catalyst-dev/catalyst-creds/pkg/telemetry"
	"github.com/catalyst-dev/catalyst-creds/pkg/tenant"
)

const (
	podToken      = "pod-token"
	podNamespace  = "acme-web-app-main"
	installation  = "12345678"
	environmentID = "env-1"
)

type fixedBinder struct{}

func (fixedBinder) Bind(_ context.Context, namespace string) (tenant.Binding, error) {
	if namespace != podNamespace {
		return tenant.Binding{}, errors.NewUnboundError("namespace carries no tenant labels", nil)
	}
	return tenant.Binding{
		Namespace:      podNamespace,
		Team:           "acme",
		Project:        "web-app",
		InstallationID: installation,
	}, nil
}

type fixedMinter struct{}

func (fixedMinter) MintInstallationToken(context.Context, string) (githubapp.Token, error) {
	return githubapp.Token{Value: "ghs_minted", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

// reviewingClientset authenticates podToken as the pod's service account
// and rejects everything else.
func reviewingClientset() *fake.Clientset {
	client := fake.NewClientset()
	client.PrependReactor("create", "tokenreviews", func(action k8stesting.Action) (bool, k8sruntime.Object, error) {
		review := action.(k8stesting.CreateAction).GetObject().(*authv1.TokenReview)
		if review.Spec.Token == podToken {
			return true, &authv1.TokenReview{Status: authv1.TokenReviewStatus{
				Authenticated: true,
				User: authv1.UserInfo{
					Username: "system:serviceaccount:" + podNamespace + ":default",
				},
			}}, nil
		}
		return true, &authv1.TokenReview{Status: authv1.TokenReviewStatus{Authenticated: false}}, nil
	})
	return client
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := sqlite.Open(t.Context(), filepath.Join(t.TempDir(), "creds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.DB().Exec(`
		CREATE TABLE environments (
			id TEXT PRIMARY KEY,
			team_id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			environment_type TEXT NOT NULL
		)`)
	require.NoError(t, err)
	_, err = db.DB().Exec(
		`INSERT INTO environments (id, team_id, project_id, environment_type)
		 VALUES ('env-1', 'acme', 'web-app', 'deployment')`)
	require.NoError(t, err)

	key := make([]byte, aes.KeySize)
	_, err = rand.Read(key)
	require.NoError(t, err)
	cipher, err := aes.NewCipher(key)
	require.NoError(t, err)

	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditor := audit.NewAuditor(slogger, "api-test")
	store := sqlite.NewSecretStore(db)
	service := secrets.NewService(store, cipher, auditor)
	resolver := secrets.NewResolver(store, cipher, slogger)

	creds := issuer.New(
		fixedBinder{},
		fixedMinter{},
		sqlite.NewEnvironmentDirectory(db),
		resolver,
		auditor,
		issuer.StaticTokenConfig{},
	)

	router := api.NewRouter(api.RouterConfig{
		Validator: auth.NewValidator(reviewingClientset()),
		Issuer:    creds,
		Secrets:   service,
		Health:    db.DB(),
		Metrics:   telemetry.NewMetrics(),
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func doRequest(t *testing.T, server *httptest.Server, method, path, token, body string) (*http.Response, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(payload)
}

func TestGitTokenBindingEnforcement(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)

	resp, body := doRequest(t, server, http.MethodGet, "/api/git-token/"+installation, podToken, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ghs_minted", body)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	resp, body = doRequest(t, server, http.MethodGet, "/api/git-token/99999999", podToken, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.NotContains(t, body, "ghs_")

	resp, _ = doRequest(t, server, http.MethodGet, "/api/git-token/"+installation, "stolen-token", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doRequest(t, server, http.MethodGet, "/api/git-token/"+installation, "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSecretBundleDelivery(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)

	// Seed one secret at each applicable tier through the management API.
	create := func(body string) {
		resp, _ := doRequest(t, server, http.MethodPost, "/api/v1beta/secrets", podToken, body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	create(`{"scope":{"level":"team","teamId":"acme"},"name":"API_KEY","value":"team-value"}`)
	create(`{"scope":{"level":"project","teamId":"acme","projectId":"web-app"},"name":"API_KEY","value":"project-value"}`)
	create(`{"scope":{"level":"environment","teamId":"acme","projectId":"web-app","environmentId":"env-1"},"name":"DATABASE_URL","value":"postgres://prod"}`)

	resp, body := doRequest(t, server, http.MethodGet, "/api/internal/secrets/"+environmentID, podToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Secrets map[string]string `json:"secrets"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Equal(t, map[string]string{
		"API_KEY":      "project-value",
		"DATABASE_URL": "postgres://prod",
	}, payload.Secrets)

	resp, _ = doRequest(t, server, http.MethodGet, "/api/internal/secrets/ghost", podToken, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, server, http.MethodGet, "/api/internal/secrets/"+environmentID, "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSecretManagementNeverReturnsValues(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)

	resp, body := doRequest(t, server, http.MethodPost, "/api/v1beta/secrets", podToken,
		`{"scope":{"level":"team","teamId":"acme"},"name":"API_KEY","value":"super-secret"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotContains(t, body, "super-secret")

	resp, body = doRequest(t, server, http.MethodGet, "/api/v1beta/secrets?level=team&teamId=acme", podToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "API_KEY")
	assert.NotContains(t, body, "super-secret")

	resp, _ = doRequest(t, server, http.MethodPost, "/api/v1beta/secrets", podToken,
		`{"scope":{"level":"team","teamId":"acme"},"name":"API_KEY","value":"other"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doRequest(t, server, http.MethodDelete, "/api/v1beta/secrets/API_KEY?level=team&teamId=acme", podToken, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doRequest(t, server, http.MethodDelete, "/api/v1beta/secrets/API_KEY?level=team&teamId=acme", podToken, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndMetricsAreUnauthenticated(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)

	resp, _ := doRequest(t, server, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := doRequest(t, server, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "catalyst_creds")
}
