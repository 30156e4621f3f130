package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// InstallationPAT is the sentinel installation id selecting a statically
// configured personal access token instead of a minted installation token.
// It is honored only when the credential service runs with the static-token
// fallback explicitly enabled.
const InstallationPAT = "pat"

// ProjectSpec defines the desired state of Project.
type ProjectSpec struct {
	// GitHubInstallationId selects the GitHub credentials used for this
	// project: the numeric GitHub App installation id (as a string) for the
	// repository or organization, or the special value "pat".
	// +optional
	GitHubInstallationId string `json:"githubInstallationId,omitempty"`

	// Sources configuration for the project (supports multiple repos).
	// +optional
	Sources []SourceConfig `json:"sources,omitempty"`
}

// SourceConfig identifies one git source of a project.
type SourceConfig struct {
	// Name identifies this source component (e.g. "frontend", "backend").
	Name string `json:"name"`

	// RepositoryURL is the git repository URL.
	RepositoryURL string `json:"repositoryUrl"`

	// Branch is the default branch to use.
	Branch string `json:"branch"`
}

// ProjectStatus defines the observed state of Project.
type ProjectStatus struct {
	// conditions represent the current state of the Project resource.
	// +listType=map
	// +listMapKey=type
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// Project is the Schema for the projects API. Projects live in their team's
// namespace; the credential service reads them to discover which external
// installation a tenant is bound to.
type Project struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ProjectSpec   `json:"spec,omitempty"`
	Status ProjectStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// ProjectList contains a list of Project.
type ProjectList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Project `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Project{}, &ProjectList{})
}
