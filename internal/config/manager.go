package config

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/JaysonAlbert/log-search-mcp/internal/secrets"
)

// validName restricts server names to TOML bare-key characters so they can
// be used as table names and in server:// resource URIs.
var validName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// encPrefix marks a password value that is fernet-encrypted on disk.
// Plaintext values are still accepted on load and re-encrypted on the next
// save, so existing config files migrate transparently.
const encPrefix = "enc:"

// fileConfig is the on-disk TOML shape.
type fileConfig struct {
	DefaultTimeout int                    `toml:"default_timeout"`
	MaxResults     int                    `toml:"max_results"`
	Servers        map[string]HostProfile `toml:"servers"`
}

// Manager owns the host configuration file: loading, validation,
// persistence, and profile CRUD. Server names keep their file order
// (insertion order for profiles added at runtime), which defines the host
// enumeration order for fleet-wide searches.
type Manager struct {
	mu   sync.RWMutex
	path string
	box  *secrets.Box

	defaultTimeout int
	maxResults     int
	profiles       map[string]HostProfile
	order          []string
}

// NewManager creates a Manager for the given config file path. box may be
// nil, in which case passwords are stored in plaintext (used by tests).
// The manager starts empty and valid; call LoadOrCreate to read the file.
func NewManager(path string, box *secrets.Box) *Manager {
	return &Manager{
		path:           path,
		box:            box,
		defaultTimeout: DefaultTimeout,
		maxResults:     DefaultMaxResults,
		profiles:       make(map[string]HostProfile),
	}
}

// LoadOrCreate reads the configuration file, creating it with defaults if
// it does not exist. On a malformed file it returns an error and leaves the
// manager in its empty default state, so the caller can log the problem and
// keep serving with no hosts rather than crash.
func (m *Manager) LoadOrCreate() error {
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		log.Printf("[config] %s not found, creating default", m.path)
		return m.Save()
	}

	var fc fileConfig
	md, err := toml.DecodeFile(m.path, &fc)
	if err != nil {
		return fmt.Errorf("parse %s: %w", m.path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if fc.DefaultTimeout > 0 {
		m.defaultTimeout = fc.DefaultTimeout
	}
	if fc.MaxResults > 0 {
		m.maxResults = fc.MaxResults
	}

	profiles := make(map[string]HostProfile, len(fc.Servers))
	order := serverOrder(md)
	for _, name := range order {
		p, ok := fc.Servers[name]
		if !ok {
			continue
		}
		p.Name = name
		p.applyDefaults(m.defaultTimeout)
		if strings.HasPrefix(p.Password, encPrefix) {
			plain, err := m.decrypt(strings.TrimPrefix(p.Password, encPrefix))
			if err != nil {
				return fmt.Errorf("decrypt password for server %s: %w", name, err)
			}
			p.Password = plain
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		profiles[name] = p
	}

	m.profiles = profiles
	m.order = order
	log.Printf("[config] loaded %d server(s) from %s", len(order), m.path)
	return nil
}

// serverOrder extracts server names in file order from the decode metadata.
// TOML decodes tables into an unordered map; the metadata keys preserve the
// order the tables appeared in.
func serverOrder(md toml.MetaData) []string {
	var order []string
	seen := make(map[string]bool)
	for _, key := range md.Keys() {
		if len(key) >= 2 && key[0] == "servers" && !seen[key[1]] {
			seen[key[1]] = true
			order = append(order, key[1])
		}
	}
	return order
}

// Save writes the current configuration to disk. Server tables are written
// in enumeration order and passwords are encrypted when a secrets box is
// configured.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "default_timeout = %d\nmax_results = %d\n", m.defaultTimeout, m.maxResults)

	for _, name := range m.order {
		p := m.profiles[name]
		if p.Password != "" && m.box != nil {
			tok, err := m.box.Encrypt(p.Password)
			if err != nil {
				return fmt.Errorf("encrypt password for server %s: %w", name, err)
			}
			p.Password = encPrefix + tok
		}
		fmt.Fprintf(&buf, "\n[servers.%s]\n", name)
		if err := toml.NewEncoder(&buf).Encode(p); err != nil {
			return fmt.Errorf("encode server %s: %w", name, err)
		}
	}

	if dir := filepath.Dir(m.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(m.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", m.path, err)
	}
	return nil
}

func (m *Manager) decrypt(token string) (string, error) {
	if m.box == nil {
		return token, nil
	}
	return m.box.Decrypt(token)
}

// Add registers a new host profile and persists the configuration.
func (m *Manager) Add(p HostProfile) error {
	if err := validateForStore(&p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.profiles[p.Name]; exists {
		return fmt.Errorf("server %q already exists", p.Name)
	}
	p.applyDefaults(m.defaultTimeout)
	m.profiles[p.Name] = p
	m.order = append(m.order, p.Name)
	return m.saveLocked()
}

// Update replaces an existing host profile and persists the configuration.
// The profile keeps its position in the enumeration order.
func (m *Manager) Update(p HostProfile) error {
	if err := validateForStore(&p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.profiles[p.Name]; !exists {
		return fmt.Errorf("server %q: %w", p.Name, ErrHostNotFound)
	}
	p.applyDefaults(m.defaultTimeout)
	m.profiles[p.Name] = p
	return m.saveLocked()
}

// Remove deletes a host profile and persists the configuration.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.profiles[name]; !exists {
		return fmt.Errorf("server %q: %w", name, ErrHostNotFound)
	}
	delete(m.profiles, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return m.saveLocked()
}

func validateForStore(p *HostProfile) error {
	if !validName.MatchString(p.Name) {
		return fmt.Errorf("invalid server name %q: only letters, digits, '-' and '_' are allowed", p.Name)
	}
	return p.Validate()
}

// Get returns the profile for a server name. Unknown names yield an error
// wrapping ErrHostNotFound.
func (m *Manager) Get(name string) (HostProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[name]
	if !ok {
		return HostProfile{}, fmt.Errorf("server %q: %w", name, ErrHostNotFound)
	}
	return p, nil
}

// ListNames returns all configured server names in enumeration order.
func (m *Manager) ListNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

// DefaultTimeout returns the global command timeout in seconds.
func (m *Manager) DefaultTimeout() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultTimeout
}

// MaxResults returns the global per-search result cap.
func (m *Manager) MaxResults() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxResults
}
