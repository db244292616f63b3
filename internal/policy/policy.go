// Package policy implements the Strategy pattern for app-specific gating rules.
// Each monitored app has its own policy naming its package and the UI
// fragments that identify the restricted viewer.
package policy

import (
	"time"

	"github.com/eliteGoblin/focusd/reelgate/internal/domain"
)

// DefaultDebounceInterval is the minimum gap between two tree scans.
const DefaultDebounceInterval = 1500 * time.Millisecond

// AppPolicy defines the strategy interface for gating an application.
type AppPolicy interface {
	// ID returns unique identifier (e.g., "instagram_reels").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// PackageName returns the foreground package that activates this policy.
	PackageName() string

	// ViewerIdentifiers returns identifier fragments of the restricted viewer.
	// Fragments are matched case-insensitively as substrings.
	ViewerIdentifiers() []string

	// IgnorePhrases returns description fragments of navigation elements
	// that must never count as the viewer itself.
	IgnorePhrases() []string

	// DebounceInterval returns the minimum gap between tree scans.
	DebounceInterval() time.Duration
}

// ToRuleSet converts an AppPolicy to a domain.RuleSet.
func ToRuleSet(ap AppPolicy) domain.RuleSet {
	return domain.RuleSet{
		ViewerIdentifiers: ap.ViewerIdentifiers(),
		IgnorePhrases:     ap.IgnorePhrases(),
	}
}
