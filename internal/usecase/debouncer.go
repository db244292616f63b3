package usecase

import "time"

// Debouncer throttles how often the tree is scanned.
// It is not safe for concurrent use; GatingController serializes access.
type Debouncer struct {
	interval time.Duration
	last     time.Time
	scanned  bool
}

// NewDebouncer creates a debouncer accepting at most one scan per interval.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// ShouldScan reports whether a scan may run at now and, if so, records now as
// the last scan time. now must come from a monotonic clock reading.
func (d *Debouncer) ShouldScan(now time.Time) bool {
	if d.scanned && now.Sub(d.last) < d.interval {
		return false
	}
	d.last = now
	d.scanned = true
	return true
}

// Interval returns the minimum gap between accepted scans.
func (d *Debouncer) Interval() time.Duration {
	return d.interval
}
