package usecase

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/reelgate/internal/domain"
)

// DefaultLockout is how long unlock attempts are refused after a wrong password.
const DefaultLockout = 2 * time.Second

var (
	ErrEmptyPassword = errors.New("password is empty")
	ErrWrongPassword = errors.New("incorrect password")
	ErrLockedOut     = errors.New("too many attempts, try again shortly")
)

// Unlocker handles the override-password flow behind the block overlay.
// A correct password turns blocking off until the user turns it back on.
type Unlocker struct {
	mu          sync.Mutex
	verifier    domain.PasswordVerifier
	settings    domain.SettingsStore
	overlay     domain.OverlayTrigger
	clock       domain.Clock
	lockout     time.Duration
	lockedUntil time.Time
	logger      *zap.Logger
}

// NewUnlocker creates an unlocker with the default lockout.
func NewUnlocker(
	verifier domain.PasswordVerifier,
	settings domain.SettingsStore,
	overlay domain.OverlayTrigger,
	clock domain.Clock,
	logger *zap.Logger,
) *Unlocker {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Unlocker{
		verifier: verifier,
		settings: settings,
		overlay:  overlay,
		clock:    clock,
		lockout:  DefaultLockout,
		logger:   logger,
	}
}

// Unlock verifies candidate and, on success, suspends blocking and dismisses
// the overlay. The overlay dismissal is best effort.
func (u *Unlocker) Unlock(candidate string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if candidate == "" {
		return ErrEmptyPassword
	}

	now := u.clock.Now()
	if now.Before(u.lockedUntil) {
		return ErrLockedOut
	}

	ok, err := u.verifier.Verify(candidate)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		u.lockedUntil = now.Add(u.lockout)
		u.logger.Warn("incorrect unlock password")
		return ErrWrongPassword
	}

	if err := u.settings.SetBlockingEnabled(false); err != nil {
		return fmt.Errorf("disable blocking: %w", err)
	}
	u.logger.Info("unlocked, blocking disabled until re-enabled")

	if u.overlay != nil {
		if err := u.overlay.Dismiss(); err != nil {
			u.logger.Warn("failed to dismiss overlay", zap.Error(err))
		}
	}
	return nil
}
