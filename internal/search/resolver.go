package search

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/JaysonAlbert/log-search-mcp/internal/config"
)

// Runner executes a command on the remote host described by profile and
// returns captured stdout. Implemented by sshconn.Manager; tests substitute
// fakes.
type Runner interface {
	Run(ctx context.Context, profile config.HostProfile, command string, timeout time.Duration) (string, error)
}

// ResolveByAge narrows path specs to the concrete files modified within the
// last ageDays days, by querying the remote filesystem. With no age limit
// configured the specs pass through untouched.
//
// Each spec is resolved with its own remote find; a failing spec
// contributes zero files and a warning instead of aborting the whole
// resolution. Results keep spec order, then remote listing order.
//
// Specs are passed to find unquoted so the remote shell expands globs; they
// come from the operator's own configuration, unlike the search pattern.
func ResolveByAge(ctx context.Context, runner Runner, profile config.HostProfile, specs []string, ageDays int, timeout time.Duration) []string {
	if ageDays <= 0 {
		return specs
	}

	var resolved []string
	for _, spec := range specs {
		cmd := fmt.Sprintf("find %s -type f -mtime -%d 2>/dev/null", spec, ageDays)
		out, err := runner.Run(ctx, profile, cmd, timeout)
		if err != nil {
			log.Printf("[search] age filter failed for %s on %s: %v", spec, profile.Name, err)
			continue
		}
		for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				resolved = append(resolved, line)
			}
		}
	}
	return resolved
}
