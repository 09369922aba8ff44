package search

import (
	"fmt"
	"strings"
)

// BuildPipeline composes the remote search command: an extended-regex,
// line-numbered grep over the given files, piped through the compiled time
// filter and a head truncation when present. The whole pipeline is wrapped
// so that missing files and zero matches collapse into empty output with
// exit status 0; the orchestrator distinguishes "no matches" from real
// failures by output, not exit code.
//
// The pattern and every path are shell-quoted before interpolation. The
// pattern reaches grep as a regex but must never reach the shell as syntax.
func BuildPipeline(pattern string, files []string, filter *TimeFilter, maxResults int) string {
	var b strings.Builder
	b.WriteString("grep -n -E ")
	b.WriteString(shellQuote(pattern))
	for _, f := range files {
		b.WriteByte(' ')
		b.WriteString(shellQuote(f))
	}

	if filter != nil {
		b.WriteString(" | ")
		b.WriteString(filter.AwkProgram())
	}

	if maxResults > 0 {
		fmt.Fprintf(&b, " | head -n %d", maxResults)
	}

	return "{ " + b.String() + "; } 2>/dev/null || true"
}

// shellQuote wraps a string in single quotes, escaping any embedded single
// quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
