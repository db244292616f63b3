// Package schedule decides whether the daily allowance window is open.
package schedule

import (
	"fmt"
	"time"

	"github.com/eliteGoblin/focusd/reelgate/internal/domain"
)

// AllowedDuration is the fixed length of the daily allowance window in minutes.
const AllowedDuration = 10

const (
	// DefaultHour and DefaultMinute anchor the window at 20:00 until the user picks a time.
	DefaultHour   = 20
	DefaultMinute = 0
)

// Gate computes the allowance window from wall-clock time.
// The window never wraps past midnight: an anchor at 23:57 only covers
// 23:57-23:59 of the same day.
type Gate struct{}

// NewGate creates a schedule gate.
func NewGate() Gate {
	return Gate{}
}

// IsInAllowedWindow reports whether now falls in [anchor, anchor+10min).
func (Gate) IsInAllowedWindow(now time.Time, anchor domain.ScheduleAnchor) bool {
	if !anchor.Enabled {
		return false
	}
	current := minutesFromMidnight(now)
	start := anchor.Hour*60 + anchor.Minute
	return current >= start && current < start+AllowedDuration
}

// RemainingMinutes returns the whole minutes left in the window, or 0 outside it.
func (g Gate) RemainingMinutes(now time.Time, anchor domain.ScheduleAnchor) int {
	if !g.IsInAllowedWindow(now, anchor) {
		return 0
	}
	end := anchor.Hour*60 + anchor.Minute + AllowedDuration
	return end - minutesFromMidnight(now)
}

// NextAllowedTime formats the anchor as HH:MM.
func (Gate) NextAllowedTime(anchor domain.ScheduleAnchor) string {
	return fmt.Sprintf("%02d:%02d", anchor.Hour, anchor.Minute)
}

func minutesFromMidnight(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ValidateAnchor checks hour and minute ranges.
func ValidateAnchor(hour, minute int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("hour must be 0-23, got %d", hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("minute must be 0-59, got %d", minute)
	}
	return nil
}

// BlockMessage is the text shown on the block overlay.
func (g Gate) BlockMessage(anchor domain.ScheduleAnchor) string {
	if !anchor.Enabled {
		return "Reels are blocked. No viewing window is scheduled."
	}
	return fmt.Sprintf("Reels are blocked. Next viewing window: %s for %d minutes.",
		g.NextAllowedTime(anchor), AllowedDuration)
}
