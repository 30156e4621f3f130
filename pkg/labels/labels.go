// Package labels provides utilities for the tenant labels the platform
// stamps onto Kubernetes namespaces and custom resources.
package labels

const (
	// LabelPrefix is the prefix for all platform labels.
	LabelPrefix = "catalyst.dev"

	// LabelTeam is the label that contains the owning team.
	LabelTeam = "catalyst.dev/team"

	// LabelProject is the label that contains the owning project.
	LabelProject = "catalyst.dev/project"

	// LabelEnvironment is the label that contains the environment name.
	LabelEnvironment = "catalyst.dev/environment"

	// LabelManagedBy marks namespaces provisioned by the platform.
	LabelManagedBy = "catalyst.dev/managed-by"

	// ManagedByValue is the value for the LabelManagedBy label.
	ManagedByValue = "catalyst"

	// AnnotationEnvironmentID carries the platform environment id on
	// Environment resources and their namespaces.
	AnnotationEnvironmentID = "catalyst.dev/environment-id"
)

// Tenant is the team/project pair a namespace belongs to.
type Tenant struct {
	Team    string
	Project string
}

// AddTenantLabels stamps the tenant labels onto a label map.
func AddTenantLabels(labels map[string]string, tenant Tenant) {
	labels[LabelManagedBy] = ManagedByValue
	labels[LabelTeam] = tenant.Team
	if tenant.Project != "" {
		labels[LabelProject] = tenant.Project
	}
}

// TenantFromLabels extracts the tenant from a namespace's labels.
// Returns false if the team label is missing; a missing project label is
// valid for team-level namespaces.
func TenantFromLabels(labels map[string]string) (Tenant, bool) {
	if labels == nil {
		return Tenant{}, false
	}

	team := labels[LabelTeam]
	if team == "" {
		return Tenant{}, false
	}

	return Tenant{Team: team, Project: labels[LabelProject]}, true
}

// IsManaged checks whether a namespace was provisioned by the platform.
func IsManaged(labels map[string]string) bool {
	return labels[LabelManagedBy] == ManagedByValue
}
