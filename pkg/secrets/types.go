// Package secrets implements encrypted tenant secrets: scoped storage,
// layered resolution and the masked projections served to operators.
package secrets

import (
	"fmt"
	"regexp"
	"time"

	"github.com/catalyst-dev/catalyst-creds/pkg/errors"
	"github.com/catalyst-dev/catalyst-creds/pkg/secrets/aes"
)

// ScopeLevel is the granularity at which a secret is defined.
type ScopeLevel string

const (
	// ScopeTeam applies to every project and environment of a team.
	ScopeTeam ScopeLevel = "team"

	// ScopeProject applies to every environment of a project.
	ScopeProject ScopeLevel = "project"

	// ScopeTemplate is a default applied to all concrete environments of one
	// environment type that do not carry their own override.
	ScopeTemplate ScopeLevel = "template"

	// ScopeEnvironment is bound to one concrete deployment target.
	ScopeEnvironment ScopeLevel = "environment"
)

// EnvironmentType distinguishes the two template classes.
type EnvironmentType string

const (
	// EnvironmentTypeDeployment covers production and staging style environments.
	EnvironmentTypeDeployment EnvironmentType = "deployment"

	// EnvironmentTypeDevelopment covers preview environments.
	EnvironmentTypeDevelopment EnvironmentType = "development"
)

// Scope is a tagged variant identifying exactly one scope level. Construct it
// through the NewXxxScope parsing functions so the identifier combination is
// always mutually consistent with the level.
type Scope struct {
	Level           ScopeLevel
	TeamID          string
	ProjectID       string
	EnvironmentType EnvironmentType
	EnvironmentID   string
}

// String renders the scope for logs and audit events.
func (s Scope) String() string {
	switch s.Level {
	case ScopeTeam:
		return fmt.Sprintf("team(%s)", s.TeamID)
	case ScopeProject:
		return fmt.Sprintf("project(%s/%s)", s.TeamID, s.ProjectID)
	case ScopeTemplate:
		return fmt.Sprintf("template(%s/%s/%s)", s.TeamID, s.ProjectID, s.EnvironmentType)
	case ScopeEnvironment:
		return fmt.Sprintf("environment(%s/%s/%s)", s.TeamID, s.ProjectID, s.EnvironmentID)
	default:
		return string(s.Level)
	}
}

// NewTeamScope builds a team-level scope.
func NewTeamScope(teamID string) (Scope, error) {
	if teamID == "" {
		return Scope{}, errors.NewInvalidArgumentError("team id is required", nil)
	}
	return Scope{Level: ScopeTeam, TeamID: teamID}, nil
}

// NewProjectScope builds a project-level scope.
func NewProjectScope(teamID, projectID string) (Scope, error) {
	if teamID == "" || projectID == "" {
		return Scope{}, errors.NewInvalidArgumentError("team id and project id are required", nil)
	}
	return Scope{Level: ScopeProject, TeamID: teamID, ProjectID: projectID}, nil
}

// NewTemplateScope builds a template-level scope for one environment type.
func NewTemplateScope(teamID, projectID string, environmentType EnvironmentType) (Scope, error) {
	if teamID == "" || projectID == "" {
		return Scope{}, errors.NewInvalidArgumentError("team id and project id are required", nil)
	}
	if err := ValidateEnvironmentType(environmentType); err != nil {
		return Scope{}, err
	}
	return Scope{
		Level:           ScopeTemplate,
		TeamID:          teamID,
		ProjectID:       projectID,
		EnvironmentType: environmentType,
	}, nil
}

// NewEnvironmentScope builds an environment-level scope.
func NewEnvironmentScope(teamID, projectID, environmentID string) (Scope, error) {
	if teamID == "" || projectID == "" || environmentID == "" {
		return Scope{}, errors.NewInvalidArgumentError(
			"team id, project id and environment id are required", nil)
	}
	return Scope{
		Level:         ScopeEnvironment,
		TeamID:        teamID,
		ProjectID:     projectID,
		EnvironmentID: environmentID,
	}, nil
}

// ValidateEnvironmentType checks that t is one of the two known types.
func ValidateEnvironmentType(t EnvironmentType) error {
	switch t {
	case EnvironmentTypeDeployment, EnvironmentTypeDevelopment:
		return nil
	default:
		return errors.NewInvalidArgumentError(
			fmt.Sprintf("invalid environment type %q (valid types: %s, %s)",
				t, EnvironmentTypeDeployment, EnvironmentTypeDevelopment), nil)
	}
}

// Secret names end up as environment variable names in pods.
var secretNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,255}$`)

// ValidateName checks that name is usable as a secret name.
func ValidateName(name string) error {
	if name == "" {
		return errors.NewInvalidArgumentError("secret name cannot be empty", nil)
	}
	if !secretNamePattern.MatchString(name) {
		return errors.NewInvalidArgumentError(
			fmt.Sprintf("invalid secret name %q: must match %s", name, secretNamePattern), nil)
	}
	return nil
}

// Secret is a named encrypted value attached to exactly one scope.
// The plaintext never appears on this struct.
type Secret struct {
	ID          string
	Scope       Scope
	Name        string
	Description string
	Encrypted   aes.EncryptedValue
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ResolvedSecret is the ephemeral output of resolution. Source records the
// scope level the effective value came from, for audit and display only.
type ResolvedSecret struct {
	Name        string
	Value       string
	Source      ScopeLevel
	Description string
}

// Masked is the projection of a Secret handed to UI-facing callers.
// It deliberately has no value field.
type Masked struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Scope       ScopeLevel      `json:"scope"`
	TeamID      string          `json:"teamId"`
	ProjectID   string          `json:"projectId,omitempty"`
	EnvType     EnvironmentType `json:"environmentType,omitempty"`
	EnvID       string          `json:"environmentId,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Masked returns the UI projection of s.
func (s Secret) Masked() Masked {
	return Masked{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Scope:       s.Scope.Level,
		TeamID:      s.Scope.TeamID,
		ProjectID:   s.Scope.ProjectID,
		EnvType:     s.Scope.EnvironmentType,
		EnvID:       s.Scope.EnvironmentID,
		UpdatedAt:   s.UpdatedAt,
	}
}
