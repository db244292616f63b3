package usecase

import (
	"errors"
	"time"

	"github.com/eliteGoblin/focusd/reelgate/internal/domain"
)

// fakeClock is a manually advanced domain.Clock.
type fakeClock struct {
	now time.Time
}

func newFakeClock(hour, minute int) *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 14, hour, minute, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// mockSettings implements domain.SettingsStore for testing.
type mockSettings struct {
	anchor     domain.ScheduleAnchor
	enabled    bool
	readErr    error
	anchorErr  error
	writeErr   error
	setEnabled []bool
}

func newMockSettings() *mockSettings {
	return &mockSettings{enabled: true}
}

func (m *mockSettings) ScheduleAnchor() (domain.ScheduleAnchor, error) {
	if m.anchorErr != nil {
		return domain.ScheduleAnchor{}, m.anchorErr
	}
	return m.anchor, nil
}

func (m *mockSettings) BlockingEnabled() (bool, error) {
	if m.readErr != nil {
		return false, m.readErr
	}
	return m.enabled, nil
}

func (m *mockSettings) SetBlockingEnabled(enabled bool) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.enabled = enabled
	m.setEnabled = append(m.setEnabled, enabled)
	return nil
}

func (m *mockSettings) SetSchedule(hour, minute int) error {
	m.anchor = domain.ScheduleAnchor{Hour: hour, Minute: minute, Enabled: true}
	return nil
}

func (m *mockSettings) ClearSchedule() error {
	m.anchor.Enabled = false
	return nil
}

// mockOverlay implements domain.OverlayTrigger for testing.
type mockOverlay struct {
	showErr    error
	dismissErr error
	shows      int
	dismisses  int
	hidden     chan struct{}
}

func newMockOverlay() *mockOverlay {
	return &mockOverlay{hidden: make(chan struct{}, 1)}
}

func (m *mockOverlay) Show() error {
	if m.showErr != nil {
		return m.showErr
	}
	m.shows++
	return nil
}

func (m *mockOverlay) Dismiss() error {
	m.dismisses++
	return m.dismissErr
}

func (m *mockOverlay) Hidden() <-chan struct{} {
	return m.hidden
}

// mockVerifier implements domain.PasswordVerifier for testing.
type mockVerifier struct {
	password string
	err      error
	calls    int
}

func (m *mockVerifier) Verify(candidate string) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	return candidate == m.password, nil
}

// treeNode is a minimal domain.UINode.
type treeNode struct {
	id       string
	desc     string
	children []domain.UINode
}

func (n *treeNode) Identifier() (string, error)  { return n.id, nil }
func (n *treeNode) Description() (string, error) { return n.desc, nil }
func (n *treeNode) ChildCount() int              { return len(n.children) }
func (n *treeNode) Child(i int) (domain.UINode, error) {
	return n.children[i], nil
}

func reelsTree() domain.UINode {
	return &treeNode{id: "action_bar_root", children: []domain.UINode{
		&treeNode{desc: "Reels tab"},
		&treeNode{id: "com.instagram.android:id/clips_viewer_view_pager"},
	}}
}

func feedTree() domain.UINode {
	return &treeNode{id: "action_bar_root", children: []domain.UINode{
		&treeNode{desc: "Reels tab"},
		&treeNode{id: "com.instagram.android:id/row_feed_photo"},
	}}
}

var errStorage = errors.New("database is locked")
