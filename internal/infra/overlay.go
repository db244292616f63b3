package infra

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/reelgate/internal/domain"
)

// MessageEnv carries the block message to the overlay command.
const MessageEnv = "REELGATE_MESSAGE"

// Default timings for overlays this process did not start.
const (
	DefaultForeignPollInterval = 500 * time.Millisecond
	DefaultTerminateGrace      = 2 * time.Second
)

// ErrOverlayNotConfigured is returned by Show when no command is set.
var ErrOverlayNotConfigured = errors.New("overlay command not configured")

// OverlayProcess is a started overlay command.
type OverlayProcess interface {
	PID() int
	Wait() error
	Kill() error
}

// ProcessLauncher abstracts process start for testing.
type ProcessLauncher interface {
	Start(env []string, name string, args ...string) (OverlayProcess, error)
}

// ExecLauncher starts real processes.
type ExecLauncher struct{}

// Start launches name with args and the extra environment.
func (ExecLauncher) Start(env []string, name string, args ...string) (OverlayProcess, error) {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), env...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) PID() int    { return p.cmd.Process.Pid }
func (p *execProcess) Wait() error { return p.cmd.Wait() }
func (p *execProcess) Kill() error { return p.cmd.Process.Kill() }

// OverlayConfig describes the overlay command.
type OverlayConfig struct {
	Command     string
	Args        []string
	ProcessName string // Name used to find an overlay started by another process

	PollInterval   time.Duration // How often a foreign overlay is checked for exit
	TerminateGrace time.Duration // Wait between SIGTERM and SIGKILL on Dismiss
}

// CommandOverlay implements domain.OverlayTrigger by running an external
// overlay program. The program exiting is the hide signal.
type CommandOverlay struct {
	mu       sync.Mutex
	config   OverlayConfig
	pm       domain.ProcessManager
	launcher ProcessLauncher
	message  func() string
	current  OverlayProcess
	watching bool // A foreign overlay is being polled for exit
	hidden   chan struct{}
	logger   *zap.Logger
}

// NewCommandOverlay creates an overlay trigger. message may be nil.
func NewCommandOverlay(config OverlayConfig, pm domain.ProcessManager, message func() string, logger *zap.Logger) *CommandOverlay {
	return NewCommandOverlayWithLauncher(config, pm, ExecLauncher{}, message, logger)
}

// NewCommandOverlayWithLauncher creates an overlay trigger with an injectable launcher (for testing).
func NewCommandOverlayWithLauncher(config OverlayConfig, pm domain.ProcessManager, launcher ProcessLauncher, message func() string, logger *zap.Logger) *CommandOverlay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ProcessName == "" && config.Command != "" {
		config.ProcessName = config.Command
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultForeignPollInterval
	}
	if config.TerminateGrace <= 0 {
		config.TerminateGrace = DefaultTerminateGrace
	}
	return &CommandOverlay{
		config:   config,
		pm:       pm,
		launcher: launcher,
		message:  message,
		hidden:   make(chan struct{}, 1),
		logger:   logger,
	}
}

// Show starts the overlay unless one is already on screen. An overlay left
// running by another process counts as on screen; its exit is polled so the
// hide signal still arrives.
func (o *CommandOverlay) Show() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.config.Command == "" {
		return ErrOverlayNotConfigured
	}
	if o.current != nil {
		o.logger.Debug("overlay already showing", zap.Int("pid", o.current.PID()))
		return nil
	}
	if o.watching {
		return nil
	}
	if pids := o.foreignOverlays(); len(pids) > 0 {
		o.logger.Info("overlay already running elsewhere", zap.Ints("pids", pids))
		o.watching = true
		go o.watchForeign(pids)
		return nil
	}

	var env []string
	if o.message != nil {
		env = append(env, MessageEnv+"="+o.message())
	}
	proc, err := o.launcher.Start(env, o.config.Command, o.config.Args...)
	if err != nil {
		return fmt.Errorf("start %s: %w", o.config.Command, err)
	}
	o.current = proc
	o.logger.Info("overlay started", zap.Int("pid", proc.PID()))

	go o.wait(proc)
	return nil
}

// wait reaps the overlay process and emits the hide signal.
func (o *CommandOverlay) wait(proc OverlayProcess) {
	err := proc.Wait()

	o.mu.Lock()
	if o.current == proc {
		o.current = nil
	}
	o.mu.Unlock()

	o.logger.Info("overlay closed", zap.Int("pid", proc.PID()), zap.NamedError("exit", err))
	select {
	case o.hidden <- struct{}{}:
	default:
		// A pending signal already covers this exit.
	}
}

// watchForeign polls overlay processes this process did not start and emits
// the hide signal once all of them have exited.
func (o *CommandOverlay) watchForeign(pids []int) {
	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	for range ticker.C {
		if len(o.alive(pids)) == 0 {
			break
		}
	}

	o.mu.Lock()
	o.watching = false
	o.mu.Unlock()

	o.logger.Info("foreign overlay closed", zap.Ints("pids", pids))
	select {
	case o.hidden <- struct{}{}:
	default:
	}
}

func (o *CommandOverlay) alive(pids []int) []int {
	var running []int
	for _, pid := range pids {
		if o.pm.IsRunning(pid) {
			running = append(running, pid)
		}
	}
	return running
}

// Dismiss closes the overlay: the one this process started, or any overlay
// process found by name when called from a separate CLI invocation. Found
// processes get SIGTERM first and SIGKILL once the grace period runs out.
func (o *CommandOverlay) Dismiss() error {
	o.mu.Lock()
	proc := o.current
	o.mu.Unlock()

	if proc != nil {
		return proc.Kill()
	}

	pids := o.foreignOverlays()
	if len(pids) == 0 {
		return nil
	}
	for _, pid := range pids {
		if err := o.pm.Terminate(pid); err != nil {
			o.logger.Debug("overlay terminate failed", zap.Int("pid", pid), zap.Error(err))
		}
	}

	deadline := time.Now().Add(o.config.TerminateGrace)
	remaining := o.alive(pids)
	for len(remaining) > 0 && time.Now().Before(deadline) {
		time.Sleep(o.config.PollInterval)
		remaining = o.alive(remaining)
	}

	var errs []error
	for _, pid := range remaining {
		o.logger.Warn("overlay ignored SIGTERM, killing", zap.Int("pid", pid))
		if err := o.pm.Kill(pid); err != nil {
			errs = append(errs, fmt.Errorf("kill overlay %d: %w", pid, err))
		}
	}
	return errors.Join(errs...)
}

// Hidden implements domain.OverlayTrigger.
func (o *CommandOverlay) Hidden() <-chan struct{} {
	return o.hidden
}

// Showing reports whether this process currently owns a running overlay.
func (o *CommandOverlay) Showing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil
}

func (o *CommandOverlay) foreignOverlays() []int {
	if o.pm == nil || o.config.ProcessName == "" {
		return nil
	}
	pids, err := o.pm.FindByName(o.config.ProcessName)
	if err != nil {
		o.logger.Debug("overlay process lookup failed", zap.Error(err))
		return nil
	}
	return pids
}

// Ensure CommandOverlay implements domain.OverlayTrigger.
var _ domain.OverlayTrigger = (*CommandOverlay)(nil)
