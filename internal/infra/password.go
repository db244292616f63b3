package infra

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/eliteGoblin/focusd/reelgate/internal/domain"
)

const (
	secretPasswordHash = "password_hash"
)

var (
	ErrPasswordNotSet = errors.New("no password configured")
	ErrPasswordEmpty  = errors.New("password must not be empty")
	ErrPasswordWrong  = errors.New("current password is incorrect")
)

// PasswordManager stores and verifies the override password as a SHA-256
// hex digest in the encrypted secret store.
type PasswordManager struct {
	secrets domain.SecretStore
}

// NewPasswordManager creates a password manager over the secret store.
func NewPasswordManager(secrets domain.SecretStore) *PasswordManager {
	return &PasswordManager{secrets: secrets}
}

// SetPassword replaces the stored digest.
func (p *PasswordManager) SetPassword(password string) error {
	if password == "" {
		return ErrPasswordEmpty
	}
	if err := p.secrets.SetSecret(secretPasswordHash, hashPassword(password)); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	return nil
}

// Verify implements domain.PasswordVerifier. With no password set every
// candidate is rejected.
func (p *PasswordManager) Verify(candidate string) (bool, error) {
	stored, err := p.secrets.GetSecret(secretPasswordHash)
	if errors.Is(err, ErrSecretNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load password: %w", err)
	}
	got := hashPassword(candidate)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(got)) == 1, nil
}

// IsSet reports whether a password has been configured.
func (p *PasswordManager) IsSet() (bool, error) {
	_, err := p.secrets.GetSecret(secretPasswordHash)
	if errors.Is(err, ErrSecretNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ChangePassword replaces the password after verifying the current one.
func (p *PasswordManager) ChangePassword(oldPassword, newPassword string) error {
	if err := p.checkCurrent(oldPassword); err != nil {
		return err
	}
	return p.SetPassword(newPassword)
}

// ResetPassword removes the password after verifying the current one.
func (p *PasswordManager) ResetPassword(current string) error {
	if err := p.checkCurrent(current); err != nil {
		return err
	}
	return p.Reset()
}

// Reset removes the stored password unconditionally.
func (p *PasswordManager) Reset() error {
	return p.secrets.DeleteSecret(secretPasswordHash)
}

func (p *PasswordManager) checkCurrent(password string) error {
	set, err := p.IsSet()
	if err != nil {
		return err
	}
	if !set {
		return ErrPasswordNotSet
	}
	ok, err := p.Verify(password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPasswordWrong
	}
	return nil
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Ensure PasswordManager implements domain.PasswordVerifier.
var _ domain.PasswordVerifier = (*PasswordManager)(nil)
