package search

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JaysonAlbert/log-search-mcp/internal/config"
)

// fakeRunner is an in-memory Runner: handle decides each command's result,
// and every call is recorded for inspection.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []string
	hosts  []string
	delay  time.Duration
	handle func(profile config.HostProfile, command string) (string, error)
}

func (f *fakeRunner) Run(ctx context.Context, profile config.HostProfile, command string, timeout time.Duration) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, command)
	f.hosts = append(f.hosts, profile.Name)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.handle == nil {
		return "", nil
	}
	return f.handle(profile, command)
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func testProfile(name string) config.HostProfile {
	return config.HostProfile{
		Name:     name,
		Hostname: name + ".internal",
		Port:     22,
		Username: "deploy",
		Password: "hunter2",
		AppName:  "webapp",
		Timeout:  30,
	}
}

func TestResolveByAgeNoLimitPassesThrough(t *testing.T) {
	runner := &fakeRunner{}
	specs := []string{"/opt/logs/webapp/*.log", "/var/log/app.log"}

	got := ResolveByAge(context.Background(), runner, testProfile("web1"), specs, 0, time.Second)

	if !reflect.DeepEqual(got, specs) {
		t.Errorf("ResolveByAge = %v, want passthrough %v", got, specs)
	}
	if len(runner.commands()) != 0 {
		t.Errorf("no age limit must mean no remote queries, got %v", runner.commands())
	}
}

func TestResolveByAgeConcatenatesInSpecOrder(t *testing.T) {
	runner := &fakeRunner{
		handle: func(_ config.HostProfile, command string) (string, error) {
			if strings.Contains(command, "/first") {
				return "/first/a.log\n/first/b.log\n", nil
			}
			return "/second/c.log\n", nil
		},
	}

	got := ResolveByAge(context.Background(), runner, testProfile("web1"),
		[]string{"/first/*.log", "/second/*.log"}, 7, time.Second)

	want := []string{"/first/a.log", "/first/b.log", "/second/c.log"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveByAge = %v, want %v", got, want)
	}

	cmds := runner.commands()
	if len(cmds) != 2 {
		t.Fatalf("expected one find per spec, got %d: %v", len(cmds), cmds)
	}
	for _, cmd := range cmds {
		if !strings.Contains(cmd, "-mtime -7") {
			t.Errorf("find missing age bound: %s", cmd)
		}
		if !strings.HasPrefix(cmd, "find ") {
			t.Errorf("unexpected command: %s", cmd)
		}
	}
}

func TestResolveByAgeIsolatesFailingSpecs(t *testing.T) {
	runner := &fakeRunner{
		handle: func(_ config.HostProfile, command string) (string, error) {
			if strings.Contains(command, "/broken") {
				return "", errors.New("connection reset")
			}
			return "/ok/app.log\n", nil
		},
	}

	got := ResolveByAge(context.Background(), runner, testProfile("web1"),
		[]string{"/broken/*.log", "/ok/*.log"}, 3, time.Second)

	want := []string{"/ok/app.log"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveByAge = %v, want %v (failing spec contributes nothing)", got, want)
	}
}

func TestResolveByAgeAllSpecsEmpty(t *testing.T) {
	runner := &fakeRunner{
		handle: func(config.HostProfile, string) (string, error) {
			return "  \n", nil
		},
	}

	got := ResolveByAge(context.Background(), runner, testProfile("web1"),
		[]string{"/a/*.log"}, 1, time.Second)

	if len(got) != 0 {
		t.Errorf("ResolveByAge = %v, want empty", got)
	}
}
