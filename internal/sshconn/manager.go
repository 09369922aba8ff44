// Package sshconn manages the pool of SSH connections to configured hosts.
//
// The central type is Manager. It keeps at most one authenticated SSH
// client per host name, validates cached clients with a keepalive request
// before reuse, and replaces dead ones transparently. Commands run over
// multiplexed sessions on the shared client, so concurrent searches against
// the same host share one TCP connection.
//
// Acquisition is serialized per host name: two concurrent callers for the
// same host never race to open two connections, while callers for
// different hosts proceed independently. No lock is held for the duration
// of a remote command.
package sshconn

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/JaysonAlbert/log-search-mcp/internal/config"
)

// Manager owns one reusable SSH connection per host name. The zero value
// is not usable; construct with NewManager.
type Manager struct {
	mu      sync.Mutex
	records map[string]*record

	states *stateTracker
	events *eventLog
}

// record holds the live connection for one host. Its mutex serializes
// liveness checking and (re)connection for that host only.
type record struct {
	mu     sync.Mutex
	client *ssh.Client
}

// NewManager creates an empty connection manager.
func NewManager() *Manager {
	return &Manager{
		records: make(map[string]*record),
		states:  newStateTracker(),
		events:  newEventLog(),
	}
}

// getRecord returns the record for a host, creating an empty one if needed.
func (m *Manager) getRecord(host string) *record {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[host]
	if !ok {
		rec = &record{}
		m.records[host] = rec
	}
	return rec
}

// dropIfEmpty removes the record for a host if it still holds no client.
// Called after a failed connection attempt so no dead record lingers.
func (m *Manager) dropIfEmpty(host string, rec *record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.records[host]; ok && cur == rec && rec.client == nil {
		delete(m.records, host)
	}
}

// Acquire returns a live SSH client for the profile's host, reusing the
// cached connection when its liveness check passes and dialing a fresh one
// otherwise. On failure no record is left behind.
func (m *Manager) Acquire(ctx context.Context, profile config.HostProfile) (*ssh.Client, error) {
	rec := m.getRecord(profile.Name)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.client != nil {
		if alive(rec.client) {
			m.events.emit(Event{Host: profile.Name, Type: EventReused, Timestamp: time.Now()})
			return rec.client, nil
		}
		rec.client.Close()
		rec.client = nil
		m.states.setState(profile.Name, StateDisconnected, "liveness check failed")
		m.events.emit(Event{Host: profile.Name, Type: EventLivenessFailed, Timestamp: time.Now()})
	}

	client, err := m.connect(ctx, profile)
	if err != nil {
		m.dropIfEmpty(profile.Name, rec)
		return nil, err
	}

	rec.client = client
	return client, nil
}

// alive sends a keepalive request to verify the connection still works.
// A global request with wantReply doubles as a liveness probe.
func alive(client *ssh.Client) bool {
	_, _, err := client.SendRequest("keepalive@openssh.com", true, nil)
	return err == nil
}

// connect dials and authenticates a new SSH connection using the profile's
// single configured credential. Errors are classified as connect or auth
// failures.
func (m *Manager) connect(ctx context.Context, profile config.HostProfile) (*ssh.Client, error) {
	auth, err := authMethod(profile)
	if err != nil {
		m.states.setState(profile.Name, StateDisconnected, err.Error())
		m.events.emit(Event{Host: profile.Name, Type: EventAuthFailed, Timestamp: time.Now(), Details: err.Error()})
		return nil, newError(KindAuth, profile.Name, err)
	}

	connectTimeout := time.Duration(profile.Timeout) * time.Second
	cfg := &ssh.ClientConfig{
		User:            profile.Username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
	}

	addr := net.JoinHostPort(profile.Hostname, fmt.Sprintf("%d", profile.Port))
	m.states.setState(profile.Name, StateConnecting, fmt.Sprintf("connecting to %s", addr))

	dialer := net.Dialer{Timeout: connectTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		m.states.setState(profile.Name, StateDisconnected, fmt.Sprintf("dial failed: %v", err))
		m.events.emit(Event{Host: profile.Name, Type: EventConnectFailed, Timestamp: time.Now(), Details: err.Error()})
		return nil, newError(KindConnect, profile.Name, fmt.Errorf("dial %s: %w", addr, err))
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, cfg)
	if err != nil {
		netConn.Close()
		kind := KindConnect
		eventType := EventConnectFailed
		if strings.Contains(err.Error(), "unable to authenticate") {
			kind = KindAuth
			eventType = EventAuthFailed
		}
		m.states.setState(profile.Name, StateDisconnected, fmt.Sprintf("ssh handshake failed: %v", err))
		m.events.emit(Event{Host: profile.Name, Type: eventType, Timestamp: time.Now(), Details: err.Error()})
		return nil, newError(kind, profile.Name, fmt.Errorf("ssh handshake with %s: %w", addr, err))
	}

	client := ssh.NewClient(sshConn, chans, reqs)
	m.states.setState(profile.Name, StateConnected, fmt.Sprintf("connected to %s", addr))
	m.events.emit(Event{Host: profile.Name, Type: EventConnected, Timestamp: time.Now(), Details: addr})
	log.Printf("[sshconn] connected to %s (%s)", profile.Name, addr)
	return client, nil
}

// authMethod builds the SSH auth method from the profile's credential.
// Profile validation guarantees exactly one of key path and password.
func authMethod(profile config.HostProfile) (ssh.AuthMethod, error) {
	if profile.PrivateKeyPath != "" {
		keyData, err := os.ReadFile(profile.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return ssh.PublicKeys(signer), nil
	}
	return ssh.Password(profile.Password), nil
}

// Run acquires a connection for the profile's host and executes command on
// it, returning captured stdout. timeout bounds the command execution; a
// non-positive timeout falls back to the profile's timeout.
//
// A timeout or execution failure does not evict the cached connection;
// only a liveness check failure does.
func (m *Manager) Run(ctx context.Context, profile config.HostProfile, command string, timeout time.Duration) (string, error) {
	client, err := m.Acquire(ctx, profile)
	if err != nil {
		return "", err
	}

	session, err := client.NewSession()
	if err != nil {
		return "", newError(KindConnect, profile.Name, fmt.Errorf("open ssh session: %w", err))
	}
	defer session.Close()

	if timeout <= 0 {
		timeout = time.Duration(profile.Timeout) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout bytes.Buffer
	session.Stdout = &stdout

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case err := <-done:
		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				m.events.emit(Event{Host: profile.Name, Type: EventCommandFailed, Timestamp: time.Now(),
					Details: fmt.Sprintf("exit status %d", exitErr.ExitStatus())})
				return "", newError(KindRemoteExec, profile.Name, fmt.Errorf("exit status %d", exitErr.ExitStatus()))
			}
			m.events.emit(Event{Host: profile.Name, Type: EventCommandFailed, Timestamp: time.Now(), Details: err.Error()})
			return "", newError(KindRemoteExec, profile.Name, err)
		}
		return stdout.String(), nil

	case <-runCtx.Done():
		// Closing the session unblocks the remote command; the cached
		// connection stays usable for the next request.
		session.Close()
		m.events.emit(Event{Host: profile.Name, Type: EventCommandTimeout, Timestamp: time.Now(),
			Details: fmt.Sprintf("after %s", timeout)})
		log.Printf("[sshconn] command timeout on %s after %s", profile.Name, timeout)
		return "", newError(KindTimeout, profile.Name, fmt.Errorf("command timed out after %s", timeout))
	}
}

// Release closes and discards the connection for one host. It is
// idempotent and swallows close-time errors.
func (m *Manager) Release(host string) {
	m.mu.Lock()
	rec, ok := m.records[host]
	if ok {
		delete(m.records, host)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.client != nil {
		rec.client.Close()
		rec.client = nil
	}
	m.states.setState(host, StateClosed, "connection released")
	m.events.emit(Event{Host: host, Type: EventClosed, Timestamp: time.Now()})
	log.Printf("[sshconn] released connection to %s", host)
}

// ReleaseAll closes every open connection. Called once at process
// shutdown, after in-flight searches have settled.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	records := m.records
	m.records = make(map[string]*record)
	m.mu.Unlock()

	for host, rec := range records {
		rec.mu.Lock()
		if rec.client != nil {
			rec.client.Close()
			rec.client = nil
		}
		rec.mu.Unlock()
		m.states.setState(host, StateClosed, "shutdown")
		m.events.emit(Event{Host: host, Type: EventClosed, Timestamp: time.Now(), Details: "shutdown"})
	}
	log.Printf("[sshconn] all connections closed (%d total)", len(records))
}

// Status reports the tracked connection state per host, for hosts that
// have seen any activity. It never touches the network.
func (m *Manager) Status() map[string]string {
	return m.states.snapshot()
}

// State returns the tracked connection state for one host.
func (m *Manager) State(host string) State {
	return m.states.getState(host)
}

// Transitions returns the recent state transition history for a host in
// chronological order.
func (m *Manager) Transitions(host string) []StateTransition {
	return m.states.getTransitions(host)
}
