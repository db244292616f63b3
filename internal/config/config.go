// Package config loads reelgate configuration from TOML, YAML or JSON files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/reelgate/internal/domain"
	"github.com/eliteGoblin/focusd/reelgate/internal/matcher"
	"github.com/eliteGoblin/focusd/reelgate/internal/policy"
)

// Environment variables that override file settings.
const (
	EnvDataDir  = "REELGATE_DATA_DIR"
	EnvLogLevel = "REELGATE_LOG_LEVEL"
)

// Config is the full reelgate configuration.
type Config struct {
	// DataDir holds the encrypted database, its key and logs.
	DataDir string `toml:"data_dir" json:"data_dir" yaml:"data_dir"`

	Monitor MonitorConfig `toml:"monitor" json:"monitor" yaml:"monitor"`
	Rules   RulesConfig   `toml:"rules" json:"rules" yaml:"rules"`
	Overlay OverlayConfig `toml:"overlay" json:"overlay" yaml:"overlay"`
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// MonitorConfig controls the gating daemon.
type MonitorConfig struct {
	// PolicyID selects the built-in app policy.
	PolicyID string `toml:"policy" json:"policy" yaml:"policy"`

	// PackageName overrides the policy's package.
	PackageName string `toml:"package" json:"package" yaml:"package"`

	// DebounceMs is the minimum gap between tree scans. Unset uses the
	// policy's interval; 0 scans on every content event.
	DebounceMs *int `toml:"debounce_ms,omitempty" json:"debounce_ms,omitempty" yaml:"debounce_ms,omitempty"`

	// HeartbeatSec is how often liveness is written to the store.
	HeartbeatSec int `toml:"heartbeat_sec" json:"heartbeat_sec" yaml:"heartbeat_sec"`
}

// RulesConfig replaces the policy's rule lists when non-empty.
type RulesConfig struct {
	ViewerIdentifiers []string `toml:"viewer_identifiers" json:"viewer_identifiers" yaml:"viewer_identifiers"`
	IgnorePhrases     []string `toml:"ignore_phrases" json:"ignore_phrases" yaml:"ignore_phrases"`
	MaxDepth          int      `toml:"max_depth" json:"max_depth" yaml:"max_depth"`
}

// OverlayConfig names the external overlay program.
type OverlayConfig struct {
	Command     string   `toml:"command" json:"command" yaml:"command"`
	Args        []string `toml:"args" json:"args" yaml:"args"`
	ProcessName string   `toml:"process_name" json:"process_name" yaml:"process_name"`
}

// LoggingConfig controls zap output.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" yaml:"level"`
	OutputPath string `toml:"output_path" json:"output_path" yaml:"output_path"`
	ErrorPath  string `toml:"error_path" json:"error_path" yaml:"error_path"`
}

// DefaultDataDir returns ~/.reelgate, or a relative directory when the home
// directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reelgate"
	}
	return filepath.Join(home, ".reelgate")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Monitor: MonitorConfig{
			PolicyID:     policy.DefaultPolicyID,
			HeartbeatSec: 30,
		},
		Rules: RulesConfig{
			MaxDepth: matcher.DefaultMaxDepth,
		},
		Overlay: OverlayConfig{
			Command: "reelgate-overlay",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must not be empty"))
	}
	if c.Monitor.PolicyID == "" {
		errs = append(errs, errors.New("monitor.policy must not be empty"))
	}
	if c.Monitor.DebounceMs != nil && *c.Monitor.DebounceMs < 0 {
		errs = append(errs, fmt.Errorf("monitor.debounce_ms must be >= 0, got %d", *c.Monitor.DebounceMs))
	}
	if c.Monitor.HeartbeatSec <= 0 {
		errs = append(errs, fmt.Errorf("monitor.heartbeat_sec must be > 0, got %d", c.Monitor.HeartbeatSec))
	}
	if c.Rules.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("rules.max_depth must be >= 0, got %d", c.Rules.MaxDepth))
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	return errors.Join(errs...)
}

// DebounceInterval returns the scan debounce, deferring to the policy when
// debounce_ms is unset.
func (c *Config) DebounceInterval(p policy.AppPolicy) time.Duration {
	if c.Monitor.DebounceMs == nil {
		return p.DebounceInterval()
	}
	return time.Duration(*c.Monitor.DebounceMs) * time.Millisecond
}

// HeartbeatInterval returns the liveness write period.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Monitor.HeartbeatSec) * time.Second
}

// Policy resolves the configured app policy.
func (c *Config) Policy(reg *policy.Registry) (policy.AppPolicy, error) {
	return reg.Get(c.Monitor.PolicyID)
}

// PackageName returns the monitored package, honoring the override.
func (c *Config) PackageName(p policy.AppPolicy) string {
	if c.Monitor.PackageName != "" {
		return c.Monitor.PackageName
	}
	return p.PackageName()
}

// RuleSet merges the policy's rules with any configured replacements.
func (c *Config) RuleSet(p policy.AppPolicy) domain.RuleSet {
	rules := policy.ToRuleSet(p)
	if len(c.Rules.ViewerIdentifiers) > 0 {
		rules.ViewerIdentifiers = c.Rules.ViewerIdentifiers
	}
	if len(c.Rules.IgnorePhrases) > 0 {
		rules.IgnorePhrases = c.Rules.IgnorePhrases
	}
	if c.Rules.MaxDepth > 0 {
		rules.MaxDepth = c.Rules.MaxDepth
	}
	return rules
}

// LogPath returns the daemon log file, defaulting into DataDir.
func (c *Config) LogPath() string {
	if c.Logging.OutputPath != "" {
		return c.Logging.OutputPath
	}
	return filepath.Join(c.DataDir, "reelgate.log")
}

// DefaultPath returns config.toml inside REELGATE_DATA_DIR, or inside the
// default data dir when that is unset.
func DefaultPath() string {
	dir := os.Getenv(EnvDataDir)
	if dir == "" {
		dir = DefaultDataDir()
	}
	return filepath.Join(dir, "config.toml")
}
