package history

import (
	"fmt"
	"strings"
)

// Executor applies replayed mutations. The store package implements it;
// the indirection keeps history free of a store dependency.
type Executor interface {
	// ApplyUpdate executes a SPARQL update body.
	ApplyUpdate(update string) error
	// RunRoutine re-runs a named routine from a routine file.
	RunRoutine(file, procedure string) error
}

// Replay re-executes the first `version` lines of the log against the
// executor. version < 0 replays everything. Annotation lines are
// skipped; fenced ```sparql blocks and file::procedure references are
// executed in order.
func Replay(path string, version int, ex Executor) error {
	lines, err := readLines(path)
	if err != nil {
		return fmt.Errorf("history: replay read: %w", err)
	}
	if version >= 0 && version < len(lines) {
		lines = lines[:version]
	}

	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		switch {
		case line == "```sparql":
			var block []string
			i++
			for i < len(lines) && strings.TrimSpace(lines[i]) != "```" {
				block = append(block, lines[i])
				i++
			}
			if i >= len(lines) {
				return fmt.Errorf("history: unterminated sparql block at line %d", i)
			}
			i++ // closing fence
			if err := ex.ApplyUpdate(strings.Join(block, "\n")); err != nil {
				return fmt.Errorf("history: replay update at line %d: %w", i, err)
			}
		case isRoutineRef(line):
			parts := strings.SplitN(line, "::", 2)
			if err := ex.RunRoutine(parts[0], parts[1]); err != nil {
				return fmt.Errorf("history: replay routine %s: %w", line, err)
			}
			i++
		default:
			i++
		}
	}
	return nil
}

// isRoutineRef reports whether a line is a file::procedure reference.
func isRoutineRef(line string) bool {
	if line == "" || strings.HasPrefix(line, "#") {
		return false
	}
	i := strings.Index(line, "::")
	return i > 0 && i+2 < len(line) && !strings.ContainsAny(line, " \t")
}
