// Package tenant resolves the Kubernetes namespace a workload runs in to the
// tenant it belongs to and the external credentials that tenant is bound to.
package tenant

// Binding is the resolved tenancy of a single namespace. It is derived
// exclusively from cluster state: the namespace's tenant labels and the
// Project resource they point at. Caller-supplied identifiers never
// influence a Binding.
type Binding struct {
	// Namespace is the namespace the binding was resolved for.
	Namespace string

	// Team and Project identify the tenant that owns the namespace.
	Team    string
	Project string

	// InstallationID is the GitHub App installation the tenant is bound to,
	// or the "pat" sentinel for statically configured credentials.
	InstallationID string
}
