package storage

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/orneryd/huginn/pkg/rdf"
)

// LoadStats reports the outcome of a bulk load.
type LoadStats struct {
	// Inserted is the number of triples newly added.
	Inserted int64
	// Duplicates is the number of well-formed statements already present.
	Duplicates int64
	// Skipped is the number of lines that failed to parse.
	Skipped int64
}

// LoadNTriples bulk-loads an N-Triples or N-Quads stream into the
// engine. Malformed lines are counted and skipped rather than aborting
// the load; real-world dumps are never fully clean.
func LoadNTriples(engine Engine, r io.Reader) (LoadStats, error) {
	var stats LoadStats
	sc := bufio.NewScanner(r)
	// Literal-heavy lines in public dumps routinely exceed the default
	// 64KB token limit.
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		t, ok, err := rdf.ParseLine(sc.Text())
		if err != nil {
			stats.Skipped++
			if stats.Skipped <= 10 {
				log.Printf("storage: skipping line %d: %v", lineNo, err)
			}
			continue
		}
		if !ok {
			continue
		}
		added, err := engine.Insert(t)
		if err != nil {
			return stats, fmt.Errorf("load failed at line %d: %w", lineNo, err)
		}
		if added {
			stats.Inserted++
		} else {
			stats.Duplicates++
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("load failed reading input: %w", err)
	}
	return stats, nil
}

// LoadNTriplesFile bulk-loads an N-Triples file by path.
func LoadNTriplesFile(engine Engine, path string) (LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return LoadStats{}, fmt.Errorf("load failed opening %s: %w", path, err)
	}
	defer f.Close()
	return LoadNTriples(engine, f)
}
