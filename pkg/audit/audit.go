// Package audit provides audit logging for the credential service.
//
// Every secret mutation and every credential issuance is recorded with actor,
// target and outcome. Secret values and minted tokens are excluded by
// construction: events only ever carry names, scopes and identifiers.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Event types.
const (
	// EventSecretCreated records a secret create.
	EventSecretCreated = "secret_created"
	// EventSecretUpdated records a secret update.
	EventSecretUpdated = "secret_updated"
	// EventSecretDeleted records a secret delete.
	EventSecretDeleted = "secret_deleted"
	// EventSecretBundleIssued records delivery of a resolved secret bundle.
	EventSecretBundleIssued = "secret_bundle_issued"
	// EventGitTokenIssued records delivery of a short-lived git token.
	EventGitTokenIssued = "git_token_issued"
)

// Outcomes.
const (
	// OutcomeSuccess marks a completed operation.
	OutcomeSuccess = "success"
	// OutcomeDenied marks an operation rejected by authentication or binding checks.
	OutcomeDenied = "denied"
	// OutcomeError marks an operation that failed for any other reason.
	OutcomeError = "error"
)

// LevelAudit is used for all audit log entries so they can be routed
// separately from operational logs.
var LevelAudit = slog.Level(12)

// Event is one audit record.
type Event struct {
	Type      string
	Actor     string
	Outcome   string
	Component string
	Target    map[string]string
	Timestamp time.Time
}

// Auditor writes audit events to a structured logger.
type Auditor struct {
	logger    *slog.Logger
	component string
}

// NewAuditor creates an auditor for one component.
func NewAuditor(logger *slog.Logger, component string) *Auditor {
	return &Auditor{logger: logger, component: component}
}

// Record writes one event. Target keys are flattened into the log record.
func (a *Auditor) Record(ctx context.Context, eventType, actor, outcome string, target map[string]string) {
	event := Event{
		Type:      eventType,
		Actor:     actor,
		Outcome:   outcome,
		Component: a.component,
		Target:    target,
		Timestamp: time.Now().UTC(),
	}

	attrs := []any{
		slog.String("event", event.Type),
		slog.String("actor", event.Actor),
		slog.String("outcome", event.Outcome),
		slog.String("component", event.Component),
		slog.Time("timestamp", event.Timestamp),
	}
	for key, value := range event.Target {
		attrs = append(attrs, slog.String("target_"+key, value))
	}

	a.logger.Log(ctx, LevelAudit, "audit", attrs...)
}
