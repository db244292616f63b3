// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// EventKind identifies the type of host UI notification.
type EventKind string

const (
	EventForegroundChanged EventKind = "FOREGROUND_CHANGED"
	EventContentChanged    EventKind = "CONTENT_CHANGED"
)

// GateState is the gating controller's state.
type GateState string

const (
	StateIdle             GateState = "IDLE"
	StateForegroundTarget GateState = "FOREGROUND_TARGET"
	StateBlocked          GateState = "BLOCKED"
)

// SnapshotProvider returns the UI tree of the active window.
// It is invoked at most once per event and only when a scan is due.
// A nil node with nil error means the host has no active window.
type SnapshotProvider func() (UINode, error)

// Event is a single notification from the host observation facility.
type Event struct {
	Kind     EventKind
	Package  string // Foreground application package
	Snapshot SnapshotProvider
}

// ScheduleAnchor is the start of the daily allowance window.
type ScheduleAnchor struct {
	Hour    int  `json:"hour"`    // 0-23
	Minute  int  `json:"minute"`  // 0-59
	Enabled bool `json:"enabled"` // false = no allowance window at all
}

// RuleSet drives content classification.
// All entries are matched as case-insensitive substrings.
type RuleSet struct {
	ViewerIdentifiers []string // Identifier fragments denoting the restricted viewer
	IgnorePhrases     []string // Description fragments of navigation elements
	MaxDepth          int      // Deepest tree level visited (root = 0)
}

// SkipReason explains why an event did not lead to a scan.
type SkipReason string

const (
	SkipNone             SkipReason = ""
	SkipOtherPackage     SkipReason = "other_package"
	SkipBlockingDisabled SkipReason = "blocking_disabled"
	SkipDebounced        SkipReason = "debounced"
	SkipAlreadyBlocked   SkipReason = "already_blocked"
	SkipNoWindow         SkipReason = "no_active_window"
	SkipSnapshotFailed   SkipReason = "snapshot_failed"
)

// ScanResult captures what happened while handling a single event.
type ScanResult struct {
	Kind            EventKind
	Package         string
	StateBefore     GateState
	StateAfter      GateState
	Scanned         bool
	Matched         bool
	InAllowedWindow bool
	Triggered       bool // Overlay was requested
	Skipped         SkipReason
	Err             error // Recovered error, if any
	ExecutedAt      time.Time
	Duration        time.Duration
}
