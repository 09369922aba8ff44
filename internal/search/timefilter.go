// Package search implements the log search core: compiling time-range
// expressions into remote filters, resolving log paths by file age,
// building the remote grep pipeline, and orchestrating single-host and
// fleet-wide searches with isolated per-host outcomes.
package search

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the timestamp format matched inside log lines and
// used for the lexical comparison bounds.
const TimestampLayout = "2006-01-02 15:04:05"

// timestampPattern is the awk regex locating a timestamp in a log line.
// Lexical comparison of this format orders the same as time comparison.
const timestampPattern = `[0-9]{4}-[0-9]{2}-[0-9]{2} [0-9]{2}:[0-9]{2}:[0-9]{2}`

// isoLayouts are the accepted endpoint formats for absolute ranges,
// tried in order. Both cases of the date/time separator are accepted;
// time.Parse matches layout literals exactly.
var isoLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02t15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// TimeFilter is a compiled time-window predicate. Lower is always set and
// inclusive; Upper is set (and inclusive) only for absolute ranges. The
// filter is compiled once per request so every host of a fleet-wide search
// is measured against the same wall-clock window.
type TimeFilter struct {
	Lower    time.Time
	Upper    time.Time
	HasUpper bool
}

// CompileTimeRange turns a time-range expression into a TimeFilter.
//
// Supported forms: "<N>h", "<N>m", "<N>d" (relative to now,
// case-insensitive) and "<start> to <end>" with ISO 8601 endpoints
// (inclusive on both ends).
//
// A malformed absolute range or an unrecognized form yields (nil, nil): the
// search proceeds unfiltered, and the fallback is logged so it stays
// observable. A relative form with a non-numeric magnitude is a hard error.
func CompileTimeRange(expr string, now time.Time) (*TimeFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	// Lowercase only for form detection; the endpoints keep their case so
	// an uppercase T separator still matches the ISO layouts.
	lowered := strings.ToLower(expr)

	if unit := lowered[len(lowered)-1]; unit == 'h' || unit == 'm' || unit == 'd' {
		n, err := strconv.Atoi(lowered[:len(lowered)-1])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid time range magnitude in %q", expr)
		}
		var d time.Duration
		switch unit {
		case 'h':
			d = time.Duration(n) * time.Hour
		case 'm':
			d = time.Duration(n) * time.Minute
		case 'd':
			d = time.Duration(n) * 24 * time.Hour
		}
		return &TimeFilter{Lower: now.Add(-d)}, nil
	}

	if i := strings.Index(lowered, " to "); i >= 0 {
		lower, err1 := parseISO(strings.TrimSpace(expr[:i]))
		upper, err2 := parseISO(strings.TrimSpace(expr[i+len(" to "):]))
		if err1 != nil || err2 != nil {
			log.Printf("[search] invalid time range %q, searching unfiltered", expr)
			return nil, nil
		}
		return &TimeFilter{Lower: lower, Upper: upper, HasUpper: true}, nil
	}

	log.Printf("[search] unrecognized time range %q, searching unfiltered", expr)
	return nil, nil
}

func parseISO(s string) (time.Time, error) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not an ISO 8601 timestamp: %q", s)
}

var timestampRegexp = regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)

// Matches reports whether a log line falls inside the filter window. It is
// the local mirror of the remote awk stage: the first timestamp substring
// is compared lexically against the bounds, and lines without a timestamp
// are dropped.
func (f *TimeFilter) Matches(line string) bool {
	ts := timestampRegexp.FindString(line)
	if ts == "" {
		return false
	}
	if ts < f.Lower.Format(TimestampLayout) {
		return false
	}
	if f.HasUpper && ts > f.Upper.Format(TimestampLayout) {
		return false
	}
	return true
}

// AwkProgram renders the filter as a remote awk stage. The program finds
// the first timestamp substring of each line and compares it lexically
// against the bounds; lines without a timestamp are dropped.
func (f *TimeFilter) AwkProgram() string {
	lower := f.Lower.Format(TimestampLayout)
	var cond string
	if f.HasUpper {
		upper := f.Upper.Format(TimestampLayout)
		cond = fmt.Sprintf(`ts >= %q && ts <= %q`, lower, upper)
	} else {
		cond = fmt.Sprintf(`ts >= %q`, lower)
	}
	script := fmt.Sprintf(
		`match($0, /%s/) { ts = substr($0, RSTART, RLENGTH); if (%s) print }`,
		timestampPattern, cond)
	return "awk " + shellQuote(script)
}
