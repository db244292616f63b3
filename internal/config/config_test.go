package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/reelgate/internal/policy"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, policy.DefaultPolicyID, cfg.Monitor.PolicyID)
	assert.Nil(t, cfg.Monitor.DebounceMs, "unset defers to the policy")
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval())
	assert.Equal(t, 256, cfg.Rules.MaxDepth)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, filepath.Join(cfg.DataDir, "reelgate.log"), cfg.LogPath())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{name: "valid", modify: func(c *Config) {}},
		{name: "empty data dir", modify: func(c *Config) { c.DataDir = "" }, wantErr: "data_dir"},
		{name: "empty policy", modify: func(c *Config) { c.Monitor.PolicyID = "" }, wantErr: "monitor.policy"},
		{name: "negative debounce", modify: func(c *Config) { c.Monitor.DebounceMs = intPtr(-1) }, wantErr: "debounce_ms"},
		{name: "zero heartbeat", modify: func(c *Config) { c.Monitor.HeartbeatSec = 0 }, wantErr: "heartbeat_sec"},
		{name: "negative depth", modify: func(c *Config) { c.Rules.MaxDepth = -5 }, wantErr: "max_depth"},
		{name: "bad log level", modify: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvDataDir, "/tmp/reelgate-env")
	t.Setenv(EnvLogLevel, "DEBUG")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "/tmp/reelgate-env", cfg.DataDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestRuleSetOverrides(t *testing.T) {
	p := policy.NewInstagramReelsPolicy()

	cfg := Default()
	rules := cfg.RuleSet(p)
	assert.Equal(t, p.ViewerIdentifiers(), rules.ViewerIdentifiers)
	assert.Equal(t, p.IgnorePhrases(), rules.IgnorePhrases)
	assert.Equal(t, 256, rules.MaxDepth)
	assert.Equal(t, policy.InstagramPackage, cfg.PackageName(p))

	cfg.Rules.ViewerIdentifiers = []string{"custom_viewer"}
	cfg.Monitor.PackageName = "com.example.app"
	rules = cfg.RuleSet(p)
	assert.Equal(t, []string{"custom_viewer"}, rules.ViewerIdentifiers)
	assert.Equal(t, p.IgnorePhrases(), rules.IgnorePhrases, "unset lists keep the policy's")
	assert.Equal(t, "com.example.app", cfg.PackageName(p))
}

func TestDebounceInterval(t *testing.T) {
	p := policy.NewInstagramReelsPolicy()
	cfg := Default()

	assert.Equal(t, p.DebounceInterval(), cfg.DebounceInterval(p))

	cfg.Monitor.DebounceMs = intPtr(250)
	assert.Equal(t, 250*time.Millisecond, cfg.DebounceInterval(p))

	cfg.Monitor.DebounceMs = intPtr(0)
	require.NoError(t, cfg.Validate())
	assert.Zero(t, cfg.DebounceInterval(p), "explicit zero disables debouncing")
}

func TestDefaultPath(t *testing.T) {
	t.Setenv(EnvDataDir, "")
	assert.Equal(t, filepath.Join(DefaultDataDir(), "config.toml"), DefaultPath())

	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)
	assert.Equal(t, filepath.Join(dir, "config.toml"), DefaultPath())

	writeFile(t, filepath.Join(dir, "config.toml"), "[monitor]\ndebounce_ms = 0\n")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	require.NotNil(t, cfg.Monitor.DebounceMs)
	assert.Zero(t, *cfg.Monitor.DebounceMs)
}

func intPtr(v int) *int { return &v }

func TestPolicyLookup(t *testing.T) {
	cfg := Default()
	p, err := cfg.Policy(policy.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, policy.DefaultPolicyID, p.ID())

	cfg.Monitor.PolicyID = "tiktok"
	_, err = cfg.Policy(policy.NewRegistry())
	assert.Error(t, err)
}

func TestDefaultDataDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	assert.Equal(t, filepath.Join(home, ".reelgate"), DefaultDataDir())
}
