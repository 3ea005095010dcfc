// Package history provides the append-only mutation log for Huginn.
//
// Every mutation applied to the dataset is recorded as one or more
// lines in a plain-text log file. The line count of the file is the
// dataset version: caches stamp their entries with it and invalidate
// when it moves. SPARQL update bodies are logged as fenced blocks so
// the log can be replayed onto an empty store to reconstruct any
// version.
//
// Log grammar:
//
//	# free-text annotation lines
//	```sparql
//	DELETE DATA { ... }
//	```
//	routines/cleanup.yaml::drop_orphans
//
// A bare `file::procedure` line references a named routine that is
// re-run during replay.
package history

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Log is an append-only mutation log backed by a single text file.
//
// Thread-safe. The file is opened in append mode and kept open for the
// lifetime of the Log; Append writes are flushed before returning.
type Log struct {
	mu    sync.Mutex
	path  string
	f     *os.File
	lines int
}

// Open opens (or creates) the log at path and counts its lines to
// establish the current version.
func Open(path string) (*Log, error) {
	lines, err := countLines(path)
	if err != nil {
		return nil, fmt.Errorf("history: counting %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("history: opening %s: %w", path, err)
	}
	return &Log{path: path, f: f, lines: lines}, nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		n++
	}
	return n, sc.Err()
}

// Path returns the log file path.
func (l *Log) Path() string { return l.path }

// Version returns the current log version: the number of lines written
// so far.
func (l *Log) Version() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines
}

// Append writes text to the log, terminating it with a newline when
// absent, and advances the version by the number of lines written.
func (l *Log) Append(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return fmt.Errorf("history: log is closed")
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if _, err := l.f.WriteString(text); err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("history: sync: %w", err)
	}
	l.lines += strings.Count(text, "\n")
	return nil
}

// AppendUpdate logs a SPARQL update body as a fenced block.
func (l *Log) AppendUpdate(update string) error {
	return l.Append("```sparql\n" + strings.TrimRight(update, "\n") + "\n```")
}

// AppendRoutine logs a routine reference as file::procedure.
func (l *Log) AppendRoutine(file, procedure string) error {
	return l.Append(file + "::" + procedure)
}

// Lines returns all log lines in order.
func (l *Log) Lines() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return readLines(l.path)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// Truncate discards every line after the given version. Used when
// reverting the dataset to an earlier version.
func (l *Log) Truncate(version int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if version < 0 || version > l.lines {
		return fmt.Errorf("history: version %d out of range [0,%d]", version, l.lines)
	}
	lines, err := readLines(l.path)
	if err != nil {
		return fmt.Errorf("history: truncate read: %w", err)
	}
	if err := l.f.Close(); err != nil {
		return fmt.Errorf("history: truncate close: %w", err)
	}

	content := ""
	if version > 0 {
		content = strings.Join(lines[:version], "\n") + "\n"
	}
	if err := os.WriteFile(l.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("history: truncate write: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("history: truncate reopen: %w", err)
	}
	l.f = f
	l.lines = version
	return nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
