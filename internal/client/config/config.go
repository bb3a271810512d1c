package config

import "time"

// Config holds runtime settings for the CardKeeper CLI.
//
// Fields:
//   - ServerURL: base URL of the sync server, empty disables sync.
//   - Secret: shared token-signing secret, empty disables request auth.
//   - DBPath: path of the local SQLite database file.
//   - RequestTimeout: per-request HTTP timeout.
//   - SyncInterval: how often the background sync cycle runs.
type Config struct {
	ServerURL      string
	Secret         string
	DBPath         string
	RequestTimeout time.Duration
	SyncInterval   time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.Secret = ""
	c.DBPath = "cardkeeper.db"
	c.RequestTimeout = 30 * time.Second
	c.SyncInterval = 60 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
