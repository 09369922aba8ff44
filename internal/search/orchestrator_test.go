package search

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JaysonAlbert/log-search-mcp/internal/config"
	"github.com/JaysonAlbert/log-search-mcp/internal/sshconn"
)

func testConfig(t *testing.T, names ...string) *config.Manager {
	t.Helper()
	m := config.NewManager(filepath.Join(t.TempDir(), "config.toml"), nil)
	for _, name := range names {
		if err := m.Add(testProfile(name)); err != nil {
			t.Fatalf("add profile %s: %v", name, err)
		}
	}
	return m
}

func TestSearchOneUnknownHost(t *testing.T) {
	s := NewSearcher(testConfig(t, "web1"), &fakeRunner{})

	outcome, err := s.SearchOne(context.Background(), "nope", "ERROR", "", 0)
	if err != nil {
		t.Fatalf("unknown host must be an outcome, not an error: %v", err)
	}
	if outcome.Status != StatusError || outcome.Kind != sshconn.KindHostNotFound {
		t.Errorf("outcome = %+v, want host-not-found error outcome", outcome)
	}
	if got := outcome.Render(); len(got) != 1 || !strings.Contains(got[0], "not found") {
		t.Errorf("Render = %v", got)
	}
}

func TestSearchOneSuccessAttribution(t *testing.T) {
	runner := &fakeRunner{
		handle: func(config.HostProfile, string) (string, error) {
			return "12:error one\n34:error two\n", nil
		},
	}
	s := NewSearcher(testConfig(t, "web1"), runner)

	outcome, err := s.SearchOne(context.Background(), "web1", "error", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Status != StatusOK {
		t.Fatalf("outcome = %+v", outcome)
	}
	want := []string{"[web1] 12:error one", "[web1] 34:error two"}
	if len(outcome.Lines) != 2 || outcome.Lines[0] != want[0] || outcome.Lines[1] != want[1] {
		t.Errorf("Lines = %v, want %v", outcome.Lines, want)
	}
}

func TestSearchOneTruncatesToCap(t *testing.T) {
	var out strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&out, "%d:match %d\n", i+1, i)
	}
	runner := &fakeRunner{
		handle: func(config.HostProfile, string) (string, error) {
			return out.String(), nil
		},
	}
	s := NewSearcher(testConfig(t, "web1"), runner)

	outcome, err := s.SearchOne(context.Background(), "web1", "match", "", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.Lines) != 5 {
		t.Fatalf("got %d lines, want exactly 5", len(outcome.Lines))
	}
	// Truncation keeps original order.
	if outcome.Lines[0] != "[web1] 1:match 0" || outcome.Lines[4] != "[web1] 5:match 4" {
		t.Errorf("Lines = %v", outcome.Lines)
	}
}

func TestSearchOneEmptyOutput(t *testing.T) {
	s := NewSearcher(testConfig(t, "web1"), &fakeRunner{})

	outcome, err := s.SearchOne(context.Background(), "web1", "needle", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Status != StatusEmpty {
		t.Fatalf("outcome = %+v", outcome)
	}
	if !strings.Contains(outcome.Message, "No results found for pattern 'needle' on web1") {
		t.Errorf("Message = %q", outcome.Message)
	}
}

func TestSearchOneBadTimeRangeIsHardError(t *testing.T) {
	s := NewSearcher(testConfig(t, "web1"), &fakeRunner{})

	if _, err := s.SearchOne(context.Background(), "web1", "x", "notanumberh", 0); err == nil {
		t.Fatal("bad relative magnitude must be a hard error")
	}
}

func TestSearchOneAgeFilterShortCircuit(t *testing.T) {
	runner := &fakeRunner{
		handle: func(_ config.HostProfile, command string) (string, error) {
			if strings.HasPrefix(command, "find ") {
				return "", nil
			}
			t.Errorf("pattern search must not run with no files: %s", command)
			return "", nil
		},
	}

	cfg := testConfig(t)
	p := testProfile("web1")
	p.FileAgeLimit = 7
	if err := cfg.Add(p); err != nil {
		t.Fatal(err)
	}
	s := NewSearcher(cfg, runner)

	outcome, err := s.SearchOne(context.Background(), "web1", "x", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Status != StatusNoFiles {
		t.Fatalf("outcome = %+v, want no-files short circuit", outcome)
	}
	if !strings.Contains(outcome.Message, "age filter") {
		t.Errorf("Message = %q", outcome.Message)
	}
}

func TestSearchAllEmptyConfiguration(t *testing.T) {
	s := NewSearcher(testConfig(t), &fakeRunner{})

	outcomes, err := s.SearchAll(context.Background(), "x", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want exactly 1", len(outcomes))
	}
	if got := outcomes[0].Render(); len(got) != 1 || got[0] != "No servers configured" {
		t.Errorf("Render = %v", got)
	}
}

func TestSearchAllFailureIsolationAndConcurrency(t *testing.T) {
	const perHostDelay = 100 * time.Millisecond

	runner := &fakeRunner{
		delay: perHostDelay,
		handle: func(p config.HostProfile, _ string) (string, error) {
			if p.Name == "web2" {
				return "", &sshconn.Error{Kind: sshconn.KindConnect, Host: p.Name,
					Err: fmt.Errorf("connection refused")}
			}
			return "1:hit\n", nil
		},
	}
	s := NewSearcher(testConfig(t, "web1", "web2", "web3", "web4"), runner)

	start := time.Now()
	outcomes, err := s.SearchAll(context.Background(), "hit", "1h", 0)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatal(err)
	}

	if len(outcomes) != 4 {
		t.Fatalf("got %d outcomes, want 4", len(outcomes))
	}

	// Outcomes stay in host enumeration order regardless of completion order.
	for i, want := range []string{"web1", "web2", "web3", "web4"} {
		if outcomes[i].Host != want {
			t.Errorf("outcomes[%d].Host = %s, want %s", i, outcomes[i].Host, want)
		}
	}

	// The failing host contributes exactly one attributed error line.
	if outcomes[1].Status != StatusError || outcomes[1].Kind != sshconn.KindConnect {
		t.Errorf("web2 outcome = %+v", outcomes[1])
	}
	if lines := outcomes[1].Render(); len(lines) != 1 || !strings.HasPrefix(lines[0], "[web2] ") {
		t.Errorf("web2 Render = %v", lines)
	}
	for _, i := range []int{0, 2, 3} {
		if outcomes[i].Status != StatusOK {
			t.Errorf("outcomes[%d] = %+v, want success despite web2 failing", i, outcomes[i])
		}
	}

	// Join-all wall time tracks the slowest host, not the sum of hosts.
	if elapsed > 3*perHostDelay {
		t.Errorf("SearchAll took %s; hosts appear to run sequentially", elapsed)
	}

	// One compiled time filter: every host's command carries the same cutoff.
	var cutoffs []string
	for _, cmd := range runner.commands() {
		if i := strings.Index(cmd, "ts >= "); i >= 0 {
			cutoffs = append(cutoffs, cmd[i:i+30])
		}
	}
	if len(cutoffs) != 4 {
		t.Fatalf("expected 4 filtered commands, got %d", len(cutoffs))
	}
	for _, c := range cutoffs[1:] {
		if c != cutoffs[0] {
			t.Errorf("hosts saw different time cutoffs: %q vs %q", cutoffs[0], c)
		}
	}
}
