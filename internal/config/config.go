// Package config manages the persisted host configuration for the log
// search server.
//
// There are two layers: Settings (process-level options from the
// environment, settings.go) and the TOML host configuration file managed
// by Manager (manager.go). The file maps server names to HostProfiles and
// carries the global search defaults.
package config

import (
	"errors"
	"fmt"
)

// Defaults applied when the configuration file does not specify a value.
const (
	DefaultPort       = 22
	DefaultTimeout    = 30
	DefaultMaxResults = 100

	// DefaultLogBase is the directory default log paths are derived under.
	DefaultLogBase = "/opt/logs"
)

// ErrHostNotFound is returned by Manager.Get for unknown server names.
// Multi-host callers convert it into a per-host outcome rather than a
// failure of the whole request.
var ErrHostNotFound = errors.New("host not found")

// HostProfile describes one remote log source: how to reach it, how to
// authenticate, and where its logs live. Exactly one of PrivateKeyPath and
// Password must be set. Profiles are validated before they enter a Manager
// and are treated as immutable afterwards.
type HostProfile struct {
	Name           string   `toml:"-" json:"name"`
	Hostname       string   `toml:"hostname" json:"hostname"`
	Port           int      `toml:"port" json:"port"`
	Username       string   `toml:"username" json:"username"`
	PrivateKeyPath string   `toml:"private_key_path,omitempty" json:"private_key_path,omitempty"`
	Password       string   `toml:"password,omitempty" json:"-"`
	AppName        string   `toml:"app_name" json:"app_name"`
	LogPaths       []string `toml:"log_paths,omitempty" json:"log_paths,omitempty"`
	FileAgeLimit   int      `toml:"file_age_limit,omitempty" json:"file_age_limit,omitempty"`
	Timeout        int      `toml:"timeout" json:"timeout"`
}

// Validate checks that all required fields are present and that exactly one
// credential method is configured.
func (p *HostProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile: name is required")
	}
	if p.Hostname == "" {
		return fmt.Errorf("profile %s: hostname is required", p.Name)
	}
	if p.Username == "" {
		return fmt.Errorf("profile %s: username is required", p.Name)
	}
	if p.AppName == "" {
		return fmt.Errorf("profile %s: app_name is required", p.Name)
	}
	hasKey := p.PrivateKeyPath != ""
	hasPassword := p.Password != ""
	if hasKey == hasPassword {
		return fmt.Errorf("profile %s: exactly one of private_key_path and password must be set", p.Name)
	}
	if p.Port < 0 || p.Port > 65535 {
		return fmt.Errorf("profile %s: invalid port %d", p.Name, p.Port)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("profile %s: invalid timeout %d", p.Name, p.Timeout)
	}
	if p.FileAgeLimit < 0 {
		return fmt.Errorf("profile %s: invalid file_age_limit %d", p.Name, p.FileAgeLimit)
	}
	return nil
}

// applyDefaults fills zero-valued optional fields. defaultTimeout is the
// global default_timeout from the configuration file.
func (p *HostProfile) applyDefaults(defaultTimeout int) {
	if p.Port == 0 {
		p.Port = DefaultPort
	}
	if p.Timeout == 0 {
		p.Timeout = defaultTimeout
	}
}

// EffectiveLogPaths returns the explicit log path list when configured,
// otherwise the conventional pair derived from the application name.
func (p *HostProfile) EffectiveLogPaths() []string {
	if len(p.LogPaths) > 0 {
		paths := make([]string, len(p.LogPaths))
		copy(paths, p.LogPaths)
		return paths
	}
	return []string{
		fmt.Sprintf("%s/%s/%s.log", DefaultLogBase, p.AppName, p.AppName),
		fmt.Sprintf("%s/%s/%s.bee.log", DefaultLogBase, p.AppName, p.AppName),
	}
}
