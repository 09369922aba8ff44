package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaysonAlbert/log-search-mcp/internal/config"
	"github.com/JaysonAlbert/log-search-mcp/internal/sshconn"
)

// Status classifies a per-host search outcome.
type Status int

const (
	// StatusOK means the host returned at least one matching line.
	StatusOK Status = iota
	// StatusEmpty means the search ran but matched nothing.
	StatusEmpty
	// StatusNoFiles means the age filter left no files to search.
	StatusNoFiles
	// StatusError means the search failed; Kind carries the failure class.
	StatusError
)

// Outcome is the result of one host's search attempt. Outcomes for
// different hosts are independent: a fleet-wide search never fails as a
// whole because one host failed.
type Outcome struct {
	Host    string
	Status  Status
	Lines   []string // attributed result lines, only for StatusOK
	Kind    sshconn.ErrorKind
	Message string // human-readable, for non-OK statuses
}

// Render returns the outcome as attributed text lines: the result lines
// for a success, or a single attributed message line otherwise.
func (o Outcome) Render() []string {
	if o.Status == StatusOK {
		return o.Lines
	}
	if o.Host == "" {
		return []string{o.Message}
	}
	return []string{fmt.Sprintf("[%s] %s", o.Host, o.Message)}
}

// Searcher orchestrates log searches across configured hosts. It owns no
// connections itself; remote execution is delegated to the Runner.
type Searcher struct {
	cfg    *config.Manager
	runner Runner

	// now is the clock used to anchor relative time ranges; tests pin it.
	now func() time.Time
}

// NewSearcher creates a search orchestrator over the given configuration
// and remote runner.
func NewSearcher(cfg *config.Manager, runner Runner) *Searcher {
	return &Searcher{cfg: cfg, runner: runner, now: time.Now}
}

// SearchOne searches a single host. Operational failures (unknown host,
// connect or auth failure, timeout, remote failure) become the returned
// outcome; the only error is invalid query input such as a bad relative
// time-range magnitude.
func (s *Searcher) SearchOne(ctx context.Context, host, pattern, timeRange string, maxResults int) (Outcome, error) {
	filter, err := CompileTimeRange(timeRange, s.now())
	if err != nil {
		return Outcome{}, err
	}
	reqID := uuid.New().String()
	log.Printf("[search] req=%s host=%s pattern=%q", reqID, host, pattern)
	return s.searchHost(ctx, reqID, host, pattern, filter, maxResults), nil
}

// SearchAll searches every configured host concurrently and returns one
// outcome per host in the host enumeration order. One host's failure never
// cancels or loses another host's results. The time filter is compiled
// once, so all hosts are measured against the same wall-clock window.
func (s *Searcher) SearchAll(ctx context.Context, pattern, timeRange string, maxResults int) ([]Outcome, error) {
	filter, err := CompileTimeRange(timeRange, s.now())
	if err != nil {
		return nil, err
	}

	names := s.cfg.ListNames()
	if len(names) == 0 {
		return []Outcome{{Status: StatusEmpty, Message: "No servers configured"}}, nil
	}

	reqID := uuid.New().String()
	log.Printf("[search] req=%s fan-out to %d host(s) pattern=%q", reqID, len(names), pattern)

	outcomes := make([]Outcome, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			outcomes[i] = s.searchHost(ctx, reqID, name, pattern, filter, maxResults)
		}(i, name)
	}
	wg.Wait()

	return outcomes, nil
}

// searchHost runs the full per-host pipeline: profile lookup, path
// resolution, command build, remote execution, and attribution. Every
// failure is converted into an outcome at this boundary.
func (s *Searcher) searchHost(ctx context.Context, reqID, host, pattern string, filter *TimeFilter, maxResults int) Outcome {
	profile, err := s.cfg.Get(host)
	if err != nil {
		if errors.Is(err, config.ErrHostNotFound) {
			return Outcome{
				Host:    host,
				Status:  StatusError,
				Kind:    sshconn.KindHostNotFound,
				Message: fmt.Sprintf("Server '%s' not found", host),
			}
		}
		return s.errorOutcome(host, err)
	}

	if maxResults <= 0 {
		maxResults = s.cfg.MaxResults()
	}
	timeout := time.Duration(profile.Timeout) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(s.cfg.DefaultTimeout()) * time.Second
	}

	files := ResolveByAge(ctx, s.runner, profile, profile.EffectiveLogPaths(), profile.FileAgeLimit, timeout)
	if len(files) == 0 {
		return Outcome{
			Host:    host,
			Status:  StatusNoFiles,
			Message: fmt.Sprintf("No log files found matching the age filter on %s", host),
		}
	}

	command := BuildPipeline(pattern, files, filter, maxResults)
	log.Printf("[search] req=%s executing on %s: %s", reqID, host, command)

	out, err := s.runner.Run(ctx, profile, command, timeout)
	if err != nil {
		return s.errorOutcome(host, err)
	}

	if strings.TrimSpace(out) == "" {
		return Outcome{
			Host:    host,
			Status:  StatusEmpty,
			Message: fmt.Sprintf("No results found for pattern '%s' on %s", pattern, host),
		}
	}

	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", host, line))
		if len(lines) == maxResults {
			break
		}
	}

	return Outcome{Host: host, Status: StatusOK, Lines: lines}
}

// errorOutcome converts a classified error into a host-attributed outcome.
func (s *Searcher) errorOutcome(host string, err error) Outcome {
	kind := sshconn.KindOf(err)
	var msg string
	switch kind {
	case sshconn.KindTimeout:
		msg = fmt.Sprintf("Search timed out on %s", host)
	default:
		msg = fmt.Sprintf("Error searching logs on %s: %v", host, err)
	}
	log.Printf("[search] %s: %v", host, err)
	return Outcome{Host: host, Status: StatusError, Kind: kind, Message: msg}
}
