package infra

import (
	"errors"
	"os"
	"sync"

	"github.com/eliteGoblin/focusd/reelgate/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	mu          sync.Mutex
	runningPIDs map[int]bool
	byName      map[string][]int
	killedPIDs  []int
	termPIDs    []int
	killErr     error
	ignoreTerm  bool // Processes survive Terminate
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
		byName:      make(map[string][]int),
	}
}

func (m *mockProcessManager) FindByName(pattern string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byName[pattern], nil
}

func (m *mockProcessManager) Kill(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.killErr != nil {
		return m.killErr
	}
	m.killedPIDs = append(m.killedPIDs, pid)
	delete(m.runningPIDs, pid)
	return nil
}

func (m *mockProcessManager) Terminate(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.termPIDs = append(m.termPIDs, pid)
	if !m.ignoreTerm {
		delete(m.runningPIDs, pid)
	}
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetNamed(name string, pids ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byName[name] = pids
}

// SetRunning marks pids as live for IsRunning.
func (m *mockProcessManager) SetRunning(pids ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pid := range pids {
		m.runningPIDs[pid] = true
	}
}

// Stop simulates pids exiting on their own.
func (m *mockProcessManager) Stop(pids ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pid := range pids {
		delete(m.runningPIDs, pid)
	}
}

func (m *mockProcessManager) killed() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.killedPIDs...)
}

var _ domain.ProcessManager = (*mockProcessManager)(nil)

// fakeProcess is an overlay process that runs until killed or closed.
type fakeProcess struct {
	pid      int
	done     chan struct{}
	stopOnce sync.Once
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, done: make(chan struct{})}
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Wait() error {
	<-p.done
	return nil
}

func (p *fakeProcess) Kill() error {
	p.exit()
	return nil
}

// exit simulates the user closing the overlay.
func (p *fakeProcess) exit() {
	p.stopOnce.Do(func() { close(p.done) })
}

// fakeLauncher records overlay launches.
type fakeLauncher struct {
	mu       sync.Mutex
	startErr error
	started  []*fakeProcess
	envs     [][]string
	nextPID  int
}

func (l *fakeLauncher) Start(env []string, name string, args ...string) (OverlayProcess, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.startErr != nil {
		return nil, l.startErr
	}
	l.nextPID++
	proc := newFakeProcess(1000 + l.nextPID)
	l.started = append(l.started, proc)
	l.envs = append(l.envs, env)
	return proc, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.started)
}

var errLaunch = errors.New("exec: overlay: executable file not found in $PATH")
