package domain

import (
	"context"
	"time"
)

// UINode is a read-only node of a UI-element tree snapshot.
// Implementations are owned by the host and must not be retained past the
// scan that received them.
type UINode interface {
	// Identifier returns the view identifier, or "" when absent.
	Identifier() (string, error)

	// Description returns the content description, or "" when absent.
	Description() (string, error)

	// ChildCount returns the number of direct children.
	ChildCount() int

	// Child returns the i-th child in document order.
	Child(i int) (UINode, error)
}

// Clock supplies the current time. Returned values carry a monotonic reading.
type Clock interface {
	Now() time.Time
}

// SettingsStore provides the user's gating configuration.
// Implementation: encrypted SQLite database.
type SettingsStore interface {
	// ScheduleAnchor returns the allowance window anchor.
	ScheduleAnchor() (ScheduleAnchor, error)

	// BlockingEnabled reports the global blocking toggle.
	BlockingEnabled() (bool, error)

	// SetBlockingEnabled persists the global blocking toggle.
	SetBlockingEnabled(enabled bool) error

	// SetSchedule stores a new anchor and enables the schedule.
	SetSchedule(hour, minute int) error

	// ClearSchedule disables the allowance window, keeping the stored anchor.
	ClearSchedule() error
}

// PasswordVerifier checks override passwords.
type PasswordVerifier interface {
	// Verify reports whether candidate matches the stored password digest.
	Verify(candidate string) (bool, error)
}

// OverlayTrigger presents and dismisses the full-screen block overlay.
type OverlayTrigger interface {
	// Show requests the overlay. Fire-and-forget: the core only logs errors.
	Show() error

	// Dismiss asks a visible overlay to close (HIDE_OVERLAY).
	Dismiss() error

	// Hidden delivers one notification each time the overlay goes away.
	Hidden() <-chan struct{}
}

// EventSource streams host UI notifications in delivery order.
type EventSource interface {
	// Events returns the event channel. It is closed when the source ends.
	Events(ctx context.Context) (<-chan Event, <-chan error)
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes matching the pattern.
	FindByName(pattern string) ([]int, error)

	// Kill forcefully terminates a process.
	Kill(pid int) error

	// Terminate asks a process to exit (SIGTERM).
	Terminate(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// SecretStore provides encrypted persistent storage for secrets.
type SecretStore interface {
	// GetSecret retrieves a secret by key.
	GetSecret(key string) (string, error)

	// SetSecret stores a secret.
	SetSecret(key, value string) error

	// DeleteSecret removes a secret. Missing keys are not an error.
	DeleteSecret(key string) error
}

// MonitorStatus is the daemon liveness record shown by `status`.
type MonitorStatus struct {
	PID           int
	LastHeartbeat int64
	AppVersion    string
	State         GateState
}

// MonitorRegistry records the running monitor for status reporting.
type MonitorRegistry interface {
	// RegisterMonitor saves the monitor PID and version.
	RegisterMonitor(pid int, version string) error

	// Heartbeat updates the liveness timestamp and the current gate state.
	Heartbeat(state GateState) error

	// MonitorStatus returns the last registered monitor, or nil if none.
	MonitorStatus() (*MonitorStatus, error)
}
