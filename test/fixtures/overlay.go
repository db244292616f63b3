package fixtures

import "sync"

// RecordingOverlay is an in-memory overlay trigger.
type RecordingOverlay struct {
	mu        sync.Mutex
	shows     int
	dismisses int
	ShowErr   error
	hidden    chan struct{}
}

// NewRecordingOverlay creates an overlay that records calls.
func NewRecordingOverlay() *RecordingOverlay {
	return &RecordingOverlay{hidden: make(chan struct{}, 1)}
}

// Show records a show request.
func (o *RecordingOverlay) Show() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ShowErr != nil {
		return o.ShowErr
	}
	o.shows++
	return nil
}

// Dismiss records the dismissal and emits the hide signal.
func (o *RecordingOverlay) Dismiss() error {
	o.mu.Lock()
	o.dismisses++
	o.mu.Unlock()
	o.Hide()
	return nil
}

// Hide simulates the overlay closing.
func (o *RecordingOverlay) Hide() {
	select {
	case o.hidden <- struct{}{}:
	default:
	}
}

// Hidden returns the hide signal channel.
func (o *RecordingOverlay) Hidden() <-chan struct{} {
	return o.hidden
}

// Shows returns how many times the overlay was shown.
func (o *RecordingOverlay) Shows() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.shows
}

// Dismisses returns how many times the overlay was dismissed.
func (o *RecordingOverlay) Dismisses() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dismisses
}
