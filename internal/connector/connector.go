// Package connector defines the interfaces to the external collaborators
// this engine depends on: the identity directory, the target-system
// connector that flips shared accounts on and off, and notification
// delivery. Real implementations live outside this codebase; the fakes
// here back development mode and tests.
package connector

import (
	"context"
	"time"

	"firegate/internal/domain"
)

// User is the directory's view of an identity. Manager resolution
// happens here so ManagerApproval steps address a concrete approver.
type User struct {
	ID        string
	Name      string
	Email     string
	ManagerID string
}

// Directory resolves opaque identity references.
type Directory interface {
	ResolveUser(ctx context.Context, id string) (User, error)
}

// LogRecord is one row of a pulled session log. Field names vary by
// category (transactions carry a transaction code and duration, change
// documents an object and change description), so the payload stays a
// flat string map.
type LogRecord struct {
	Timestamp time.Time         `json:"timestamp"`
	Actor     string            `json:"actor"`
	Fields    map[string]string `json:"fields"`
}

// TargetSystem activates and deactivates a shared privileged account on
// a managed system and extracts its session logs. All calls may block;
// callers own timeouts and retries.
type TargetSystem interface {
	Activate(ctx context.Context, firefighterID, system string) error
	Deactivate(ctx context.Context, firefighterID, system string) error
	FetchLogs(ctx context.Context, firefighterID, system string, window domain.Window, category domain.LogCategory) ([]LogRecord, error)
}

// Notification is one fire-and-forget message. Delivery failures are
// logged, never retried by this core.
type Notification struct {
	Recipient string
	Event     string
	RequestID string
	Message   string
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}
