package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/cardkeeper/cardkeeper/internal/flagx"
	"github.com/cardkeeper/cardkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "30s"
// or as integer nanoseconds.
type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	Secret         string         `json:"secret"`
	DBPath         string         `json:"db_path"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	SyncInterval   timex.Duration `json:"sync_interval"`
}

// parseJson overlays Config with values loaded from a JSON file. The file
// path comes from the -c/-config flags via flagx.JsonConfigFlags; when no
// path is given nothing is loaded. Read and unmarshal errors panic.
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

	cfg.ServerURL = jc.ServerURL
	cfg.Secret = jc.Secret
	cfg.DBPath = jc.DBPath
	cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
}
