// Package config resolves application configuration. An optional .env
// file is loaded first, then environment variables; durable toggles
// live in the store's settings table, which environment values seed on
// startup so a fresh machine can be configured entirely from the
// environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"safedraft/internal/filesync"
	"safedraft/internal/storage"
	"safedraft/internal/syncer"
)

// Settings keys consulted by the application.
const (
	KeyMasterMonitor = "master_monitor" // "on"/"off" gate for trigger callbacks
	KeySyncMode      = "sync_mode"      // off | clickhouse | ssh
	KeyTheme         = "theme"
)

// App is the resolved configuration.
type App struct {
	DataDir  string
	DBName   string
	LogLevel string

	SyncMode   string // off | clickhouse | ssh
	ClickHouse syncer.ClickHouseConfig
	SSH        filesync.SSHConfig
	RemotePath string // remote database path for ssh mode
}

// Load reads .env (if present) and the environment, filling defaults.
func Load() App {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	def := storage.DefaultConfig()
	app := App{
		DataDir:  envOr("SAFEDRAFT_DATA_DIR", def.DataDir),
		DBName:   def.DBName,
		LogLevel: envOr("SAFEDRAFT_LOG_LEVEL", "info"),
		SyncMode: envOr("SAFEDRAFT_SYNC_MODE", ""),
		ClickHouse: syncer.ClickHouseConfig{
			Addr:     envOr("SAFEDRAFT_CH_ADDR", "localhost:9000"),
			Database: envOr("SAFEDRAFT_CH_DATABASE", "default"),
			Username: envOr("SAFEDRAFT_CH_USER", "default"),
			Password: os.Getenv("SAFEDRAFT_CH_PASSWORD"),
		},
		SSH: filesync.SSHConfig{
			Host:     os.Getenv("SAFEDRAFT_SSH_HOST"),
			Port:     envInt("SAFEDRAFT_SSH_PORT", 22),
			User:     os.Getenv("SAFEDRAFT_SSH_USER"),
			Password: os.Getenv("SAFEDRAFT_SSH_PASSWORD"),
		},
		RemotePath: envOr("SAFEDRAFT_SSH_REMOTE_PATH", "safedraft/safedraft.db"),
	}
	return app
}

// StorageConfig returns the storage configuration slice of the app.
func (a App) StorageConfig() storage.Config {
	return storage.Config{DataDir: a.DataDir, DBName: a.DBName}
}

// SeedSettings writes environment-provided durable toggles into the
// settings table. Only explicitly set values are written; the settings
// table stays the source of truth for everything else.
func (a App) SeedSettings(store *storage.Store) error {
	if a.SyncMode != "" {
		if err := store.SetSetting(KeySyncMode, a.SyncMode); err != nil {
			return err
		}
	}
	if v := os.Getenv("SAFEDRAFT_MASTER_MONITOR"); v != "" {
		if err := store.SetSetting(KeyMasterMonitor, v); err != nil {
			return err
		}
	}
	return nil
}

// SyncModeFor returns the effective sync mode: the settings table wins
// over the environment default, unknown values mean off.
func SyncModeFor(store *storage.Store) string {
	mode := store.Setting(KeySyncMode, "off")
	switch mode {
	case "clickhouse", "ssh":
		return mode
	}
	return "off"
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
