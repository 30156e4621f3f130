package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/catalyst-dev/catalyst-creds/pkg/auth"
	"github.com/catalyst-dev/catalyst-creds/pkg/errors"
	"github.com/catalyst-dev/catalyst-creds/pkg/logger"
	"github.com/catalyst-dev/catalyst-creds/pkg/secrets"
)

// SecretsRouter serves the management CRUD surface the dashboard backend
// calls. Values are accepted on create and update but never returned;
// every read is the masked projection.
func SecretsRouter(service *secrets.Service) http.Handler {
	routes := &secretsRoutes{service: service}
	r := chi.NewRouter()
	r.Get("/", routes.listSecrets)
	r.Post("/", routes.createSecret)
	r.Put("/{name}", routes.updateSecret)
	r.Delete("/{name}", routes.deleteSecret)
	return r
}

type secretsRoutes struct {
	service *secrets.Service
}

// scopeRequest is the wire form of a secret scope, used both as query
// parameters and inside JSON bodies.
type scopeRequest struct {
	Level           string `json:"level"`
	TeamID          string `json:"teamId"`
	ProjectID       string `json:"projectId,omitempty"`
	EnvironmentType string `json:"environmentType,omitempty"`
	EnvironmentID   string `json:"environmentId,omitempty"`
}

func (s scopeRequest) parse() (secrets.Scope, error) {
	switch secrets.ScopeLevel(s.Level) {
	case secrets.ScopeTeam:
		return secrets.NewTeamScope(s.TeamID)
	case secrets.ScopeProject:
		return secrets.NewProjectScope(s.TeamID, s.ProjectID)
	case secrets.ScopeTemplate:
		return secrets.NewTemplateScope(s.TeamID, s.ProjectID, secrets.EnvironmentType(s.EnvironmentType))
	case secrets.ScopeEnvironment:
		return secrets.NewEnvironmentScope(s.TeamID, s.ProjectID, s.EnvironmentID)
	default:
		return secrets.Scope{}, errors.NewInvalidArgumentError(
			fmt.Sprintf("unknown scope level %q", s.Level), nil)
	}
}

func scopeFromQuery(query url.Values) (secrets.Scope, error) {
	return scopeRequest{
		Level:           query.Get("level"),
		TeamID:          query.Get("teamId"),
		ProjectID:       query.Get("projectId"),
		EnvironmentType: query.Get("environmentType"),
		EnvironmentID:   query.Get("environmentId"),
	}.parse()
}

type createSecretRequest struct {
	Scope       scopeRequest `json:"scope"`
	Name        string       `json:"name"`
	Value       string       `json:"value"`
	Description string       `json:"description,omitempty"`
}

type updateSecretRequest struct {
	Scope       scopeRequest `json:"scope"`
	Value       *string      `json:"value,omitempty"`
	Description *string      `json:"description,omitempty"`
}

type secretListResponse struct {
	Secrets []secrets.Masked `json:"secrets"`
}

// listSecrets
//
// @Summary      List secrets in one scope
// @Tags         secrets
// @Produce      json
// @Success      200  {object}  secretListResponse
// @Failure      400  {object}  errorResponse
// @Router       /api/v1beta/secrets [get]
func (s *secretsRoutes) listSecrets(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	masked, err := s.service.List(r.Context(), scope)
	if err != nil {
		writeError(w, err)
		return
	}
	if masked == nil {
		masked = []secrets.Masked{}
	}

	writeJSON(w, http.StatusOK, secretListResponse{Secrets: masked})
}

// createSecret
//
// @Summary      Create a secret
// @Tags         secrets
// @Accept       json
// @Produce      json
// @Success      201  {object}  secrets.Masked
// @Failure      400  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /api/v1beta/secrets [post]
func (s *secretsRoutes) createSecret(w http.ResponseWriter, r *http.Request) {
	var req createSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewInvalidArgumentError("invalid request body", err))
		return
	}

	scope, err := req.Scope.parse()
	if err != nil {
		writeError(w, err)
		return
	}

	secret, err := s.service.Create(r.Context(), scope, req.Name, req.Value, req.Description, actorOf(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, secret.Masked())
}

// updateSecret
//
// @Summary      Update a secret's value or description
// @Tags         secrets
// @Accept       json
// @Produce      json
// @Success      200  {object}  secrets.Masked
// @Failure      404  {object}  errorResponse
// @Router       /api/v1beta/secrets/{name} [put]
func (s *secretsRoutes) updateSecret(w http.ResponseWriter, r *http.Request) {
	var req updateSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewInvalidArgumentError("invalid request body", err))
		return
	}

	scope, err := req.Scope.parse()
	if err != nil {
		writeError(w, err)
		return
	}

	secret, err := s.service.Update(r.Context(), scope, chi.URLParam(r, "name"), req.Value, req.Description, actorOf(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, secret.Masked())
}

// deleteSecret
//
// @Summary      Delete a secret
// @Tags         secrets
// @Success      204  {string}  string  "No Content"
// @Failure      404  {object}  errorResponse
// @Router       /api/v1beta/secrets/{name} [delete]
func (s *secretsRoutes) deleteSecret(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := s.service.Delete(r.Context(), scope, chi.URLParam(r, "name"), actorOf(r)); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func actorOf(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.Username()
	}
	return "unknown"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf("Failed to write response: %v", err)
	}
}
