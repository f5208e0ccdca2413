package config

import "time"

// Config holds runtime settings for the staff device CLI.
//
// Fields:
//   - ServerEndpointAddr: base URL of the check-in server API.
//   - DatabasePath: path of the local sqlite file backing the action queue
//     and roster snapshots.
//   - SnapshotTTL: how long a cached roster snapshot stays usable offline.
//   - SyncInterval: how often the background scheduler drains the queue.
//   - HeartbeatInterval: how often the device reports its pending count.
type Config struct {
	ServerEndpointAddr string
	DatabasePath       string
	SnapshotTTL        time.Duration
	SyncInterval       time.Duration
	HeartbeatInterval  time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.DatabasePath = "doorsync.db"
	c.SnapshotTTL = 24 * time.Hour
	c.SyncInterval = 30 * time.Second
	c.HeartbeatInterval = 60 * time.Second
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
