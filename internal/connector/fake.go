package connector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"firegate/internal/domain"
	dErrors "firegate/pkg/domain-errors"
)

// StaticDirectory serves identity lookups from a fixed user set.
// Development deployments seed it from config; tests seed it inline.
type StaticDirectory struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewStaticDirectory builds a directory over the given users.
func NewStaticDirectory(users ...User) *StaticDirectory {
	m := make(map[string]User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return &StaticDirectory{users: m}
}

func (d *StaticDirectory) ResolveUser(ctx context.Context, id string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return User{}, dErrors.Newf(dErrors.CodeValidation, "unknown user %q", id)
	}
	return u, nil
}

// FakeTargetSystem is an in-process target-system connector with
// scriptable failures, used by development mode and lifecycle tests.
type FakeTargetSystem struct {
	mu sync.Mutex

	// Remaining failures to inject per operation before succeeding.
	// Set to a negative number to fail forever.
	ActivateFailures   int
	DeactivateFailures int
	FetchFailures      map[domain.LogCategory]int

	// Logs returned per category once fetches succeed.
	Logs map[domain.LogCategory][]LogRecord

	ActivateCalls   []string
	DeactivateCalls []string
	FetchCalls      []domain.LogCategory
}

func NewFakeTargetSystem() *FakeTargetSystem {
	return &FakeTargetSystem{
		FetchFailures: make(map[domain.LogCategory]int),
		Logs:          make(map[domain.LogCategory][]LogRecord),
	}
}

func (f *FakeTargetSystem) Activate(ctx context.Context, firefighterID, system string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ActivateCalls = append(f.ActivateCalls, firefighterID+"@"+system)
	if f.ActivateFailures != 0 {
		if f.ActivateFailures > 0 {
			f.ActivateFailures--
		}
		return fmt.Errorf("activate %s on %s: connector unavailable", firefighterID, system)
	}
	return nil
}

func (f *FakeTargetSystem) Deactivate(ctx context.Context, firefighterID, system string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeactivateCalls = append(f.DeactivateCalls, firefighterID+"@"+system)
	if f.DeactivateFailures != 0 {
		if f.DeactivateFailures > 0 {
			f.DeactivateFailures--
		}
		return fmt.Errorf("deactivate %s on %s: connector unavailable", firefighterID, system)
	}
	return nil
}

func (f *FakeTargetSystem) FetchLogs(ctx context.Context, firefighterID, system string, window domain.Window, category domain.LogCategory) ([]LogRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchCalls = append(f.FetchCalls, category)
	if n := f.FetchFailures[category]; n != 0 {
		if n > 0 {
			f.FetchFailures[category] = n - 1
		}
		return nil, fmt.Errorf("fetch %s for %s on %s: extract job failed", category, firefighterID, system)
	}
	return f.Logs[category], nil
}

// ActivateCount returns how many activation calls were made; tests use
// it to assert idempotence.
func (f *FakeTargetSystem) ActivateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ActivateCalls)
}

// DeactivateCount returns how many deactivation calls were made.
func (f *FakeTargetSystem) DeactivateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.DeactivateCalls)
}

// SeedSessionLogs fills all three categories with plausible extract rows
// for development mode.
func (f *FakeTargetSystem) SeedSessionLogs(actor string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Logs[domain.LogTransactions] = []LogRecord{
		{Timestamp: at, Actor: actor, Fields: map[string]string{"transaction": "SU01", "client": "100", "duration": "00:02:35"}},
		{Timestamp: at.Add(30 * time.Minute), Actor: actor, Fields: map[string]string{"transaction": "PFCG", "client": "100", "duration": "00:08:12"}},
	}
	f.Logs[domain.LogAudit] = []LogRecord{
		{Timestamp: at.Add(time.Minute), Actor: actor, Fields: map[string]string{"event": "authorization check", "result": "passed"}},
	}
	f.Logs[domain.LogChanges] = []LogRecord{
		{Timestamp: at.Add(3 * time.Minute), Actor: actor, Fields: map[string]string{"object": "USER", "object_id": "FINANCE01", "change": "authorization profile updated"}},
	}
}

// LogNotifier writes notifications to the structured log. It is the
// default Notifier when no delivery integration is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, msg Notification) {
	n.Logger.InfoContext(ctx, "notification",
		"recipient", msg.Recipient,
		"event", msg.Event,
		"request_id", msg.RequestID,
		"message", msg.Message,
	)
}

// RecordingNotifier captures notifications for assertions in tests.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *RecordingNotifier) Notify(ctx context.Context, msg Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

// Sent returns a copy of everything delivered so far.
func (n *RecordingNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.sent))
	copy(out, n.sent)
	return out
}
