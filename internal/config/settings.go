package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// Settings holds process-level options that are not part of the host
// configuration file. They come from the environment with a LOGSEARCH_
// prefix so the MCP client launching the server can set them without
// touching the config file.
type Settings struct {
	LogPath       string `envconfig:"LOG_PATH" default:""`
	StatusAddr    string `envconfig:"STATUS_ADDR" default:""`
	AuditDBPath   string `envconfig:"AUDIT_DB_PATH" default:"log_search_audit.db"`
	SecretKeyPath string `envconfig:"SECRET_KEY_PATH" default:"log_search_secret.key"`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process("LOGSEARCH", &Cfg); err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}
}
