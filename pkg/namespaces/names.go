// Package namespaces provisions and names the tenant namespaces that
// workloads deploy into.
package namespaces

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// maxNameLength is the Kubernetes limit for namespace names.
const maxNameLength = 63

var (
	invalidChars = regexp.MustCompile(`[^a-z0-9-]+`)
	repeatedDash = regexp.MustCompile(`-+`)
	dns1123      = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)
)

// sanitizeComponent reduces a name to lowercase letters, numbers and hyphens,
// with no leading, trailing or repeated hyphens. Length is not enforced here.
func sanitizeComponent(name string) string {
	name = strings.ToLower(name)
	name = invalidChars.ReplaceAllString(name, "-")
	name = repeatedDash.ReplaceAllString(name, "-")
	return strings.Trim(name, "-")
}

// joinWithHash joins sanitized components with hyphens. If the result would
// exceed the 63-character namespace limit, it is truncated to 57 characters
// and suffixed with the first 5 hex characters of the SHA-256 of the full
// name, keeping long tenant names both legal and collision-resistant.
func joinWithHash(components []string) string {
	sanitized := make([]string, 0, len(components))
	for _, component := range components {
		if cleaned := sanitizeComponent(component); cleaned != "" {
			sanitized = append(sanitized, cleaned)
		}
	}

	full := strings.Join(sanitized, "-")
	if len(full) <= maxNameLength {
		return full
	}

	sum := sha256.Sum256([]byte(full))
	suffix := hex.EncodeToString(sum[:])[:5]

	truncated := strings.TrimRight(full[:maxNameLength-len(suffix)-1], "-")
	return fmt.Sprintf("%s-%s", truncated, suffix)
}

// TeamNamespace returns the namespace holding a team's Project resources and
// shared infrastructure.
func TeamNamespace(team string) string {
	return sanitizeComponent(team)
}

// ProjectNamespace returns the namespace providing project-level isolation.
func ProjectNamespace(team, project string) string {
	return joinWithHash([]string{team, project})
}

// EnvironmentNamespace returns the namespace workloads actually deploy into.
func EnvironmentNamespace(team, project, environment string) string {
	return joinWithHash([]string{team, project, environment})
}

// IsValidName reports whether name is a legal namespace name.
func IsValidName(name string) bool {
	return len(name) > 0 && len(name) <= maxNameLength && dns1123.MatchString(name)
}
