package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/gatherhall/doorsync/internal/flagx"
	"github.com/gatherhall/doorsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "30s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	DatabasePath       string         `json:"database_path"`
	SnapshotTTL        timex.Duration `json:"snapshot_ttl"`
	SyncInterval       timex.Duration `json:"sync_interval"`
	HeartbeatInterval  timex.Duration `json:"heartbeat_interval"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// The file path comes from the -c or -config flags via
// flagx.JsonConfigFlags(); if neither is set, no JSON is loaded. Read or
// unmarshal errors panic, matching the fail-fast startup behavior of the
// other config stages.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	cfg.DatabasePath = jc.DatabasePath
	cfg.SnapshotTTL = time.Duration(jc.SnapshotTTL.Duration)
	cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	cfg.HeartbeatInterval = time.Duration(jc.HeartbeatInterval.Duration)
}
