// Package auth turns bearer tokens into verified cluster identities.
//
// Validation delegates to the cluster's TokenReview API; nothing here has
// persistent state and no identity survives beyond a single request.
package auth

import (
	"fmt"
	"strings"
)

// serviceAccountPrefix is the username prefix the cluster assigns to
// service-account subjects.
const serviceAccountPrefix = "system:serviceaccount:"

// VerifiedIdentity is the result of a successful token review.
type VerifiedIdentity struct {
	// Namespace the workload runs in.
	Namespace string
	// SubjectName is the service-account name within the namespace.
	SubjectName string
}

// Username renders the identity back into the cluster's subject form,
// for audit events.
func (i VerifiedIdentity) Username() string {
	return fmt.Sprintf("%s%s:%s", serviceAccountPrefix, i.Namespace, i.SubjectName)
}

// parseServiceAccount splits a subject of the form
// system:serviceaccount:<namespace>:<name>. Any other shape is rejected.
func parseServiceAccount(username string) (VerifiedIdentity, bool) {
	rest, ok := strings.CutPrefix(username, serviceAccountPrefix)
	if !ok {
		return VerifiedIdentity{}, false
	}

	namespace, name, ok := strings.Cut(rest, ":")
	if !ok || namespace == "" || name == "" || strings.Contains(name, ":") {
		return VerifiedIdentity{}, false
	}

	return VerifiedIdentity{Namespace: namespace, SubjectName: name}, true
}
