// Package daemon implements the long-running gating monitor.
package daemon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/reelgate/internal/domain"
	"github.com/eliteGoblin/focusd/reelgate/internal/matcher"
	"github.com/eliteGoblin/focusd/reelgate/internal/usecase"
)

// MonitorConfig holds monitor daemon configuration.
type MonitorConfig struct {
	HeartbeatInterval time.Duration // How often liveness is written to the registry
	Version           string        // Reported in the registry
}

// DefaultMonitorConfig returns default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		HeartbeatInterval: 30 * time.Second,
		Version:           "dev",
	}
}

// Stats counts what the monitor has processed.
type Stats struct {
	Events      int
	Scans       int
	Matches     int
	Triggers    int
	Errors      int
	Hides       int
	RuleReloads int
}

// Monitor feeds host events into the gating controller.
// It also forwards overlay hide signals, applies rule reloads and writes
// heartbeats. Everything happens on the Run goroutine.
type Monitor struct {
	config     MonitorConfig
	controller *usecase.GatingController
	source     domain.EventSource
	overlay    domain.OverlayTrigger
	registry   domain.MonitorRegistry
	pid        int
	rules      chan domain.RuleSet
	logger     *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// NewMonitor creates a monitor. registry may be nil.
func NewMonitor(
	config MonitorConfig,
	controller *usecase.GatingController,
	source domain.EventSource,
	overlay domain.OverlayTrigger,
	registry domain.MonitorRegistry,
	pid int,
	logger *zap.Logger,
) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultMonitorConfig().HeartbeatInterval
	}
	return &Monitor{
		config:     config,
		controller: controller,
		source:     source,
		overlay:    overlay,
		registry:   registry,
		pid:        pid,
		rules:      make(chan domain.RuleSet, 1),
		logger:     logger,
	}
}

// UpdateRules queues a rule set to replace the controller's matcher.
// Only the newest pending rule set is kept.
func (m *Monitor) UpdateRules(rules domain.RuleSet) {
	for {
		select {
		case m.rules <- rules:
			return
		default:
		}
		select {
		case <-m.rules:
		default:
		}
	}
}

// Stats returns a copy of the counters.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Run processes events until ctx is canceled or the source ends.
// A source that ends returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	if m.registry != nil {
		if err := m.registry.RegisterMonitor(m.pid, m.config.Version); err != nil {
			m.logger.Error("failed to register monitor", zap.Error(err))
			return err
		}
	}

	m.logger.Info("monitor started",
		zap.Int("pid", m.pid),
		zap.String("version", m.config.Version))

	events, errs := m.source.Events(ctx)

	var hidden <-chan struct{}
	if m.overlay != nil {
		hidden = m.overlay.Hidden()
	}

	heartbeatTicker := time.NewTicker(m.config.HeartbeatInterval)
	defer heartbeatTicker.Stop()

	defer func() {
		m.heartbeat()
		s := m.Stats()
		m.logger.Info("monitor stopped",
			zap.Int("events", s.Events),
			zap.Int("scans", s.Scans),
			zap.Int("triggers", s.Triggers))
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				m.drainErrors(errs)
				m.logger.Info("event source closed")
				return nil
			}
			m.handle(ev)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			m.sourceError(err)

		case <-hidden:
			m.count(func(s *Stats) { s.Hides++ })
			m.controller.OverlayHidden()
			m.heartbeat()

		case rules := <-m.rules:
			m.controller.SetMatcher(matcher.New(rules, m.logger))
			m.count(func(s *Stats) { s.RuleReloads++ })
			m.logger.Info("rules reloaded",
				zap.Int("viewer_identifiers", len(rules.ViewerIdentifiers)),
				zap.Int("ignore_phrases", len(rules.IgnorePhrases)))

		case <-heartbeatTicker.C:
			m.heartbeat()
		}
	}
}

// drainErrors records errors still buffered when the event channel closes.
func (m *Monitor) drainErrors(errs <-chan error) {
	for errs != nil {
		select {
		case err, ok := <-errs:
			if !ok {
				return
			}
			m.sourceError(err)
		default:
			return
		}
	}
}

func (m *Monitor) sourceError(err error) {
	m.count(func(s *Stats) { s.Errors++ })
	m.logger.Warn("event source error", zap.Error(err))
}

func (m *Monitor) handle(ev domain.Event) {
	before := m.controller.State()
	result := m.controller.HandleEvent(ev)

	m.count(func(s *Stats) {
		s.Events++
		if result.Scanned {
			s.Scans++
		}
		if result.Matched {
			s.Matches++
		}
		if result.Triggered {
			s.Triggers++
		}
	})

	if result.Err != nil {
		m.logger.Warn("event handled with error",
			zap.String("kind", string(result.Kind)),
			zap.Error(result.Err))
	}
	if result.Scanned {
		m.logger.Debug("scan completed",
			zap.Bool("matched", result.Matched),
			zap.Bool("in_allowed_window", result.InAllowedWindow),
			zap.Duration("duration", result.Duration))
	}
	if result.StateAfter != before {
		m.heartbeat()
	}
}

func (m *Monitor) heartbeat() {
	if m.registry == nil {
		return
	}
	if err := m.registry.Heartbeat(m.controller.State()); err != nil {
		m.logger.Warn("failed to update heartbeat", zap.Error(err))
	}
}

func (m *Monitor) count(fn func(*Stats)) {
	m.mu.Lock()
	fn(&m.stats)
	m.mu.Unlock()
}
