package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/orneryd/huginn/pkg/rdf"
)

// MemoryEngine is a thread-safe in-memory triple store.
//
// Use cases:
//   - Unit testing (no disk I/O, fast cleanup)
//   - Small datasets that fit entirely in RAM
//
// Triples are indexed by all three permutations so any partially bound
// pattern resolves without a full scan. Scans iterate in sorted key
// order for deterministic query results.
type MemoryEngine struct {
	mu sync.RWMutex
	// spo[s][p][o] etc.; leaf value is the stored triple.
	spo map[string]map[string]map[string]rdf.Triple
	pos map[string]map[string]map[string]rdf.Triple
	osp map[string]map[string]map[string]rdf.Triple

	count  int64
	closed bool
}

// NewMemoryEngine creates an empty in-memory engine.
func NewMemoryEngine() *MemoryEngine {
	m := &MemoryEngine{}
	m.reset()
	return m
}

func (m *MemoryEngine) reset() {
	m.spo = make(map[string]map[string]map[string]rdf.Triple)
	m.pos = make(map[string]map[string]map[string]rdf.Triple)
	m.osp = make(map[string]map[string]map[string]rdf.Triple)
	m.count = 0
}

func put(idx map[string]map[string]map[string]rdf.Triple, a, b, c string, t rdf.Triple) {
	l1, ok := idx[a]
	if !ok {
		l1 = make(map[string]map[string]rdf.Triple)
		idx[a] = l1
	}
	l2, ok := l1[b]
	if !ok {
		l2 = make(map[string]rdf.Triple)
		l1[b] = l2
	}
	l2[c] = t
}

func del(idx map[string]map[string]map[string]rdf.Triple, a, b, c string) {
	l1, ok := idx[a]
	if !ok {
		return
	}
	l2, ok := l1[b]
	if !ok {
		return
	}
	delete(l2, c)
	if len(l2) == 0 {
		delete(l1, b)
	}
	if len(l1) == 0 {
		delete(idx, a)
	}
}

// Insert adds a triple, returning true if it was newly added.
func (m *MemoryEngine) Insert(t rdf.Triple) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrStorageClosed
	}
	s, p, o := t.Subject.String(), t.Predicate.String(), t.Object.String()
	if _, exists := m.spo[s][p][o]; exists {
		return false, nil
	}
	put(m.spo, s, p, o, t)
	put(m.pos, p, o, s, t)
	put(m.osp, o, s, p, t)
	m.count++
	return true, nil
}

// Delete removes a triple, returning true if it was present.
func (m *MemoryEngine) Delete(t rdf.Triple) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrStorageClosed
	}
	s, p, o := t.Subject.String(), t.Predicate.String(), t.Object.String()
	if _, exists := m.spo[s][p][o]; !exists {
		return false, nil
	}
	del(m.spo, s, p, o)
	del(m.pos, p, o, s)
	del(m.osp, o, s, p)
	m.count--
	return true, nil
}

// Match streams triples satisfying the pattern in sorted order.
func (m *MemoryEngine) Match(ctx context.Context, pat Pattern, fn Visitor) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrStorageClosed
	}
	// Collect under the read lock so the visitor runs without it; scans
	// interleave with updates during iterative mutations.
	matched := m.collect(pat)
	m.mu.RUnlock()

	for _, t := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(t); err != nil {
			if err == ErrIterationStopped {
				return nil
			}
			return err
		}
	}
	return nil
}

func (m *MemoryEngine) collect(pat Pattern) []rdf.Triple {
	var out []rdf.Triple
	add := func(t rdf.Triple) {
		if pat.Matches(t) {
			out = append(out, t)
		}
	}

	switch {
	case pat.Subject != nil:
		walkIndex(m.spo, pat.Subject.String(), add)
	case pat.Predicate != nil:
		walkIndex(m.pos, pat.Predicate.String(), add)
	case pat.Object != nil:
		walkIndex(m.osp, pat.Object.String(), add)
	default:
		for _, a := range sortedKeys(m.spo) {
			walkIndex(m.spo, a, add)
		}
	}
	return out
}

func walkIndex(idx map[string]map[string]map[string]rdf.Triple, a string, add func(rdf.Triple)) {
	l1, ok := idx[a]
	if !ok {
		return
	}
	for _, b := range sortedKeys(l1) {
		l2 := l1[b]
		for _, c := range sortedKeys(l2) {
			add(l2[c])
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the number of stored triples.
func (m *MemoryEngine) Count() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrStorageClosed
	}
	return m.count, nil
}

// Clear removes all triples.
func (m *MemoryEngine) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}
	m.reset()
	return nil
}

// Close releases the engine. Further calls fail with ErrStorageClosed.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.reset()
	return nil
}
