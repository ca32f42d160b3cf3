package cargo

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// finishedLine matches cargo's summary, e.g.
	// "Finished dev [unoptimized + debuginfo] target(s) in 4m 26s".
	finishedLine = regexp.MustCompile(`Finished .* in \S`)

	// durationFragment accepts "1h 2m 3.45s" with every component optional.
	durationFragment = regexp.MustCompile(`^(?:(\d+)h)?\s*(?:(\d+)m)?\s*(?:(\d+)(?:\.(\d+))?s)?$`)
)

// ParseDuration extracts the build duration from cargo's stderr. The last
// "Finished ... in <duration>" line wins; without one the last non-empty
// line is used. Durations are truncated to whole milliseconds.
func ParseDuration(stderr string) (Milliseconds, error) {
	line := summaryLine(stderr)
	if line == "" {
		return 0, &ParseError{Reason: "empty output"}
	}

	idx := strings.LastIndex(line, "in ")
	if idx < 0 {
		return 0, &ParseError{Line: line, Reason: `no "in " token`}
	}

	return parseFragment(line, strings.TrimSpace(line[idx+len("in "):]))
}

func summaryLine(stderr string) string {
	lines := strings.Split(stderr, "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		if finishedLine.MatchString(lines[i]) {
			return strings.TrimSpace(lines[i])
		}
	}

	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}

	return ""
}

func parseFragment(line, fragment string) (Milliseconds, error) {
	if fragment == "" {
		return 0, &ParseError{Line: line, Reason: "empty duration"}
	}

	m := durationFragment.FindStringSubmatch(fragment)
	if m == nil {
		return 0, &ParseError{Line: line, Reason: "unrecognized duration " + strconv.Quote(fragment)}
	}

	var total uint64

	for i, unit := range []uint64{3_600_000, 60_000, 1_000} {
		if m[i+1] == "" {
			continue
		}

		n, err := strconv.ParseUint(m[i+1], 10, 64)
		if err != nil {
			return 0, &ParseError{Line: line, Reason: err.Error()}
		}

		total += n * unit
	}

	// Fractional seconds: keep the first three digits, padding short ones.
	if frac := m[4]; frac != "" {
		frac = (frac + "00")[:3]

		n, err := strconv.ParseUint(frac, 10, 64)
		if err != nil {
			return 0, &ParseError{Line: line, Reason: err.Error()}
		}

		total += n
	}

	return Milliseconds(total), nil
}
