// Package githubapp mints short-lived GitHub App installation tokens.
package githubapp

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/catalyst-dev/catalyst-creds/pkg/errors"
	"github.com/catalyst-dev/catalyst-creds/pkg/logger"
)

const (
	// DefaultBaseURL is the GitHub REST API endpoint.
	DefaultBaseURL = "https://api.github.com"

	// appJWTLifetime is how long the signed app JWT is valid. GitHub caps
	// this at 10 minutes; stay under it.
	appJWTLifetime = 9 * time.Minute

	// appJWTClockSkew is subtracted from iat to tolerate clock drift
	// between this service and GitHub.
	appJWTClockSkew = 60 * time.Second

	maxMintAttempts = 4
)

// Token is a minted installation access token and its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Minter exchanges a GitHub App's private key for installation access
// tokens. Tokens are scoped to a single installation and expire after
// roughly one hour; callers are expected to fetch a fresh one per use
// rather than store them.
type Minter struct {
	appID      string
	privateKey *rsa.PrivateKey
	baseURL    string
	httpClient *http.Client
}

// MinterOption configures a Minter.
type MinterOption func(*Minter)

// WithBaseURL overrides the GitHub API base URL, e.g. for GitHub
// Enterprise or tests.
func WithBaseURL(baseURL string) MinterOption {
	return func(m *Minter) {
		m.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient overrides the HTTP client used for GitHub API calls.
func WithHTTPClient(client *http.Client) MinterOption {
	return func(m *Minter) {
		m.httpClient = client
	}
}

// NewMinter creates a Minter for the given GitHub App. The key is the
// app's private key in PEM format as downloaded from GitHub.
func NewMinter(appID string, privateKeyPEM []byte, opts ...MinterOption) (*Minter, error) {
	if appID == "" {
		return nil, errors.NewInvalidArgumentError("GitHub App id is required", nil)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("failed to parse GitHub App private key", err)
	}

	m := &Minter{
		appID:      appID,
		privateKey: privateKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// MintInstallationToken mints an access token for one installation.
// Transient failures (network errors, GitHub 5xx) are retried with
// exponential backoff; a definitive rejection from GitHub is not.
func (m *Minter) MintInstallationToken(ctx context.Context, installationID string) (Token, error) {
	appJWT, err := m.signAppJWT()
	if err != nil {
		return Token{}, errors.NewInternalError("failed to sign GitHub App JWT", err)
	}

	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", m.baseURL, installationID)

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 250 * time.Millisecond

	token, err := backoff.Retry(ctx, func() (Token, error) {
		return m.requestToken(ctx, url, appJWT)
	},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(maxMintAttempts),
		backoff.WithNotify(func(err error, duration time.Duration) {
			logger.Debugw("retrying installation token mint",
				"installation_id", installationID, "delay", duration, "error", err)
		}),
	)
	if err != nil {
		return Token{}, err
	}
	return token, nil
}

func (m *Minter) signAppJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    m.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-appJWTClockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.privateKey)
}

func (m *Minter) requestToken(ctx context.Context, url, appJWT string) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return Token{}, backoff.Permanent(errors.NewInternalError("failed to build token request", err))
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Token{}, errors.NewAuthBackendUnavailableError("GitHub API unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Token{}, errors.NewAuthBackendUnavailableError("failed to read GitHub response", err)
	}

	switch {
	case resp.StatusCode == http.StatusCreated:
	case resp.StatusCode >= http.StatusInternalServerError:
		return Token{}, errors.NewAuthBackendUnavailableError(
			fmt.Sprintf("GitHub returned %d", resp.StatusCode), nil)
	default:
		// 4xx means the app JWT or installation id is wrong; retrying
		// cannot fix that.
		return Token{}, backoff.Permanent(errors.NewInternalError(
			fmt.Sprintf("GitHub rejected token request with %d", resp.StatusCode), nil))
	}

	var payload struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Token{}, backoff.Permanent(errors.NewInternalError("failed to decode GitHub token response", err))
	}
	if payload.Token == "" {
		return Token{}, backoff.Permanent(errors.NewInternalError("GitHub returned an empty token", nil))
	}

	return Token{Value: payload.Token, ExpiresAt: payload.ExpiresAt}, nil
}
