// Package usecase contains application business logic.
package usecase

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/reelgate/internal/domain"
	"github.com/eliteGoblin/focusd/reelgate/internal/matcher"
	"github.com/eliteGoblin/focusd/reelgate/internal/schedule"
)

// ErrConfigUnavailable is returned (wrapped) when settings cannot be read.
// The controller then falls back to blocking enabled with no schedule.
var ErrConfigUnavailable = errors.New("settings unavailable")

// OverlayLaunchError reports that the host refused to present the overlay.
type OverlayLaunchError struct {
	Err error
}

func (e *OverlayLaunchError) Error() string {
	return fmt.Sprintf("launch overlay: %v", e.Err)
}

func (e *OverlayLaunchError) Unwrap() error {
	return e.Err
}

// ControllerConfig holds gating controller configuration.
type ControllerConfig struct {
	PackageName      string        // Monitored foreground package
	DebounceInterval time.Duration // Minimum gap between scans
}

// SystemClock reads the wall clock (with monotonic reading).
type SystemClock struct{}

// Now implements domain.Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// GatingController turns host UI events into block-overlay requests.
// HandleEvent and OverlayHidden are serialized by an internal mutex, so a
// host delivering events from several threads never runs two scans at once.
type GatingController struct {
	mu        sync.Mutex
	config    ControllerConfig
	state     domain.GateState
	debouncer *Debouncer
	matcher   *matcher.ContentMatcher
	gate      schedule.Gate
	settings  domain.SettingsStore
	overlay   domain.OverlayTrigger
	clock     domain.Clock
	logger    *zap.Logger
}

// NewGatingController creates a controller in the IDLE state.
func NewGatingController(
	config ControllerConfig,
	m *matcher.ContentMatcher,
	settings domain.SettingsStore,
	overlay domain.OverlayTrigger,
	clock domain.Clock,
	logger *zap.Logger,
) *GatingController {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GatingController{
		config:    config,
		state:     domain.StateIdle,
		debouncer: NewDebouncer(config.DebounceInterval),
		matcher:   m,
		gate:      schedule.NewGate(),
		settings:  settings,
		overlay:   overlay,
		clock:     clock,
		logger:    logger,
	}
}

// State returns the current gate state.
func (c *GatingController) State() domain.GateState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetMatcher swaps the classifier, e.g. after a rules reload.
func (c *GatingController) SetMatcher(m *matcher.ContentMatcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matcher = m
}

// OverlayHidden applies the hide signal: BLOCKED -> FOREGROUND_TARGET.
// In any other state it is a no-op.
func (c *GatingController) OverlayHidden() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.StateBlocked {
		return
	}
	c.state = domain.StateForegroundTarget
	c.logger.Info("overlay hidden, gate released")
}

// HandleEvent processes one host event to completion, including the tree scan.
func (c *GatingController) HandleEvent(ev domain.Event) (result domain.ScanResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.clock.Now()
	result = domain.ScanResult{
		Kind:        ev.Kind,
		Package:     ev.Package,
		StateBefore: c.state,
		ExecutedAt:  start,
	}
	defer func() {
		result.StateAfter = c.state
		result.Duration = c.clock.Now().Sub(start)
	}()

	if ev.Package != c.config.PackageName {
		if c.state != domain.StateIdle {
			c.logger.Debug("left monitored app", zap.String("package", ev.Package))
		}
		c.state = domain.StateIdle
		result.Skipped = domain.SkipOtherPackage
		return result
	}

	if c.state == domain.StateIdle {
		c.state = domain.StateForegroundTarget
		c.logger.Debug("monitored app in foreground", zap.String("package", ev.Package))
	}

	if ev.Kind != domain.EventContentChanged {
		return result
	}

	if c.state == domain.StateBlocked {
		result.Skipped = domain.SkipAlreadyBlocked
		return result
	}

	anchor, enabled, err := c.loadSettings()
	if err != nil {
		result.Err = err
	}
	if !enabled {
		result.Skipped = domain.SkipBlockingDisabled
		return result
	}

	if !c.debouncer.ShouldScan(start) {
		result.Skipped = domain.SkipDebounced
		return result
	}

	c.scan(ev, anchor, &result)
	return result
}

// scan classifies the current snapshot and triggers the overlay when due.
func (c *GatingController) scan(ev domain.Event, anchor domain.ScheduleAnchor, result *domain.ScanResult) {
	if ev.Snapshot == nil {
		result.Skipped = domain.SkipNoWindow
		return
	}
	root, err := ev.Snapshot()
	if err != nil {
		c.logger.Warn("failed to read active window", zap.Error(err))
		result.Skipped = domain.SkipSnapshotFailed
		result.Err = err
		return
	}
	if root == nil {
		result.Skipped = domain.SkipNoWindow
		return
	}

	result.Scanned = true
	scan := c.matcher.Scan(root)
	for _, readErr := range scan.ReadErrors {
		c.logger.Debug("tree read error", zap.Error(readErr))
	}

	if !scan.Matched {
		c.logger.Debug("not in restricted viewer", zap.Int("nodes", scan.Visited))
		return
	}
	result.Matched = true

	if c.gate.IsInAllowedWindow(c.clock.Now(), anchor) {
		result.InAllowedWindow = true
		c.logger.Info("restricted viewer detected in allowed window, not blocking",
			zap.Int("remaining_minutes", c.gate.RemainingMinutes(c.clock.Now(), anchor)))
		return
	}

	c.logger.Info("restricted viewer detected, showing overlay",
		zap.String("identifier", scan.Identifier))

	if err := c.overlay.Show(); err != nil {
		launchErr := &OverlayLaunchError{Err: err}
		c.logger.Error("failed to show overlay", zap.Error(launchErr))
		result.Err = launchErr
		return
	}

	c.state = domain.StateBlocked
	result.Triggered = true
}

// loadSettings reads the anchor and toggle. On failure it returns the
// restrictive defaults (blocking enabled, no schedule) with the error.
func (c *GatingController) loadSettings() (domain.ScheduleAnchor, bool, error) {
	enabled, err := c.settings.BlockingEnabled()
	if err != nil {
		c.logger.Warn("settings unavailable, using defaults", zap.Error(err))
		return domain.ScheduleAnchor{}, true, fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
	}
	if !enabled {
		return domain.ScheduleAnchor{}, false, nil
	}

	anchor, err := c.settings.ScheduleAnchor()
	if err != nil {
		c.logger.Warn("schedule unavailable, using defaults", zap.Error(err))
		return domain.ScheduleAnchor{}, true, fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
	}
	return anchor, true, nil
}
