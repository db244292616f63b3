package infra

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/reelgate/internal/domain"
	"github.com/eliteGoblin/focusd/reelgate/internal/schedule"
)

const (
	storeDBName = "reelgate.db"

	keyScheduleHour    = "schedule_hour"
	keyScheduleMinute  = "schedule_minute"
	keyScheduleEnabled = "schedule_enabled"
	keyBlockingEnabled = "blocking_enabled"

	metaMonitorPID     = "monitor_pid"
	metaMonitorBeat    = "monitor_heartbeat"
	metaMonitorVersion = "monitor_version"
	metaMonitorState   = "monitor_state"
)

// ErrSecretNotFound is returned by GetSecret for unknown keys.
var ErrSecretNotFound = errors.New("secret not found")

// EncryptedStore keeps settings, the password digest and monitor liveness in
// a SQLCipher encrypted SQLite database. Both the monitor daemon and one-shot
// CLI commands open it; SQLite serializes writers across processes.
type EncryptedStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedStore opens (or creates) the encrypted database in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedStore(dataDir string, key []byte) (*EncryptedStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, storeDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096&_busy_timeout=5000", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// A wrong key only surfaces on the first query.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	store := &EncryptedStore{db: db, dbPath: dbPath}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

func (s *EncryptedStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS secrets (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *EncryptedStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// --- settings helpers ---

func (s *EncryptedStore) getSetting(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *EncryptedStore) getInt(key string, def int) (int, error) {
	raw, ok, err := s.getSetting(key)
	if err != nil || !ok {
		return def, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("setting %s: %w", key, err)
	}
	return n, nil
}

func (s *EncryptedStore) getBool(key string, def bool) (bool, error) {
	raw, ok, err := s.getSetting(key)
	if err != nil || !ok {
		return def, err
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("setting %s: %w", key, err)
	}
	return b, nil
}

func (s *EncryptedStore) putSettings(kv map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	for k, v := range kv {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`, k, v, now); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// --- domain.SettingsStore implementation ---

// ScheduleAnchor returns the stored anchor; 20:00 and disabled until set.
func (s *EncryptedStore) ScheduleAnchor() (domain.ScheduleAnchor, error) {
	hour, err := s.getInt(keyScheduleHour, schedule.DefaultHour)
	if err != nil {
		return domain.ScheduleAnchor{}, err
	}
	minute, err := s.getInt(keyScheduleMinute, schedule.DefaultMinute)
	if err != nil {
		return domain.ScheduleAnchor{}, err
	}
	enabled, err := s.getBool(keyScheduleEnabled, false)
	if err != nil {
		return domain.ScheduleAnchor{}, err
	}
	return domain.ScheduleAnchor{Hour: hour, Minute: minute, Enabled: enabled}, nil
}

// BlockingEnabled returns the toggle; enabled until explicitly turned off.
func (s *EncryptedStore) BlockingEnabled() (bool, error) {
	return s.getBool(keyBlockingEnabled, true)
}

// SetBlockingEnabled persists the toggle.
func (s *EncryptedStore) SetBlockingEnabled(enabled bool) error {
	return s.putSettings(map[string]string{keyBlockingEnabled: strconv.FormatBool(enabled)})
}

// SetSchedule stores the anchor and enables the schedule.
func (s *EncryptedStore) SetSchedule(hour, minute int) error {
	if err := schedule.ValidateAnchor(hour, minute); err != nil {
		return err
	}
	return s.putSettings(map[string]string{
		keyScheduleHour:    strconv.Itoa(hour),
		keyScheduleMinute:  strconv.Itoa(minute),
		keyScheduleEnabled: "true",
	})
}

// ClearSchedule disables the allowance window.
func (s *EncryptedStore) ClearSchedule() error {
	return s.putSettings(map[string]string{keyScheduleEnabled: "false"})
}

// --- domain.SecretStore implementation ---

// GetSecret retrieves a secret by key.
func (s *EncryptedStore) GetSecret(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM secrets WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %q", ErrSecretNotFound, key)
	}
	return value, err
}

// SetSecret stores a secret.
func (s *EncryptedStore) SetSecret(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO secrets (key, value, created_at) VALUES (?, ?, ?)`,
		key, value, time.Now().Unix())
	return err
}

// DeleteSecret removes a secret.
func (s *EncryptedStore) DeleteSecret(key string) error {
	_, err := s.db.Exec(`DELETE FROM secrets WHERE key = ?`, key)
	return err
}

// --- domain.MonitorRegistry implementation ---

func (s *EncryptedStore) putMeta(kv map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for k, v := range kv {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// RegisterMonitor saves the running monitor's PID and version.
func (s *EncryptedStore) RegisterMonitor(pid int, version string) error {
	return s.putMeta(map[string]string{
		metaMonitorPID:     strconv.Itoa(pid),
		metaMonitorVersion: version,
		metaMonitorBeat:    strconv.FormatInt(time.Now().Unix(), 10),
		metaMonitorState:   string(domain.StateIdle),
	})
}

// Heartbeat updates the liveness timestamp and gate state.
func (s *EncryptedStore) Heartbeat(state domain.GateState) error {
	return s.putMeta(map[string]string{
		metaMonitorBeat:  strconv.FormatInt(time.Now().Unix(), 10),
		metaMonitorState: string(state),
	})
}

// MonitorStatus returns the last registered monitor, or nil if none.
func (s *EncryptedStore) MonitorStatus() (*domain.MonitorStatus, error) {
	rows, err := s.db.Query(`SELECT key, value FROM meta WHERE key LIKE 'monitor_%'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pid, err := strconv.Atoi(meta[metaMonitorPID])
	if err != nil || pid == 0 {
		return nil, nil
	}
	beat, _ := strconv.ParseInt(meta[metaMonitorBeat], 10, 64)
	return &domain.MonitorStatus{
		PID:           pid,
		LastHeartbeat: beat,
		AppVersion:    meta[metaMonitorVersion],
		State:         domain.GateState(meta[metaMonitorState]),
	}, nil
}

// Ensure EncryptedStore implements the storage interfaces.
var (
	_ domain.SettingsStore   = (*EncryptedStore)(nil)
	_ domain.SecretStore     = (*EncryptedStore)(nil)
	_ domain.MonitorRegistry = (*EncryptedStore)(nil)
)
