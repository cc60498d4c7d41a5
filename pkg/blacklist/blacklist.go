// Package blacklist compiles the pattern-file grammar §6 describes into
// a predicate matches(path) → bool. The spec treats pattern *compilation*
// as an external collaborator for the blacklist/ignorelist CLI flags,
// but the grammar is shared by three on-disk files (blacklist.txt,
// ignorelist.txt, game_has_dlc.txt per §9.1), so it lives here as a
// small leaf utility the engine and catalog both depend on.
package blacklist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Pattern is one compiled line: "<flags> <pattern>". The 'R' flag marks
// a regex; 'p' marks perl-compatible, which is already Go regexp's
// default and is accepted but never changes behavior — see DESIGN.md's
// note on this open question.
type Pattern struct {
	Raw   string
	Regex *regexp.Regexp // non-nil when the 'R' flag was set
}

func (p Pattern) Match(path string) bool {
	if p.Regex != nil {
		return p.Regex.MatchString(path)
	}
	return strings.Contains(path, p.Raw)
}

// List is a compiled set of Patterns. A zero-value List matches nothing.
type List struct {
	patterns []Pattern
}

// Matches reports whether any pattern in l matches path.
func (l List) Matches(path string) bool {
	for _, p := range l.patterns {
		if p.Match(path) {
			return true
		}
	}
	return false
}

// Len returns the number of compiled patterns.
func (l List) Len() int { return len(l.patterns) }

// Parse compiles a pattern file per the grammar in §6:
//
//	<flags-without-spaces> <pattern>
//
// '#' at column 0 is a comment. Lines that fail to parse produce a
// warning (returned, not raised) and are skipped rather than aborting
// the whole file.
func Parse(r io.Reader) (List, []string) {
	var list List
	var warnings []string

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			warnings = append(warnings, fmt.Sprintf("line %d: malformed entry %q, skipping", lineNo, line))
			continue
		}
		flags, pattern := fields[0], fields[1]

		var isRegex, badFlag bool
		for _, c := range flags {
			switch c {
			case 'R':
				isRegex = true
			case 'p':
				// perl-compat flag: accepted, no-op (Go regexp is the
				// only engine this implementation has; see DESIGN.md).
			default:
				warnings = append(warnings, fmt.Sprintf("line %d: unknown flag %q in %q, skipping", lineNo, string(c), line))
				badFlag = true
			}
		}
		if badFlag {
			continue
		}

		p := Pattern{Raw: pattern}
		if isRegex {
			re, err := regexp.Compile(pattern)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("line %d: invalid regex %q: %v, skipping", lineNo, pattern, err))
				continue
			}
			p.Regex = re
		}
		list.patterns = append(list.patterns, p)
	}

	return list, warnings
}

// Load opens path and parses it. A missing file is not an error: it
// produces an empty List, matching the original's behavior of treating
// an absent blacklist/ignorelist/game_has_dlc file as "nothing listed."
func Load(path string) (List, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return List{}, nil, nil
		}
		return List{}, nil, fmt.Errorf("opening pattern file %s: %w", path, err)
	}
	defer f.Close()

	list, warnings := Parse(f)
	return list, warnings, nil
}
