package storage

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/huginn/pkg/rdf"
)

// Key prefixes for the three triple permutations.
// Single-byte prefixes keep keys compact and scans cheap.
const (
	prefixSPO = byte(0x01) // 0x01 + s + 0x00 + p + 0x00 + o -> empty
	prefixPOS = byte(0x02) // 0x02 + p + 0x00 + o + 0x00 + s -> empty
	prefixOSP = byte(0x03) // 0x03 + o + 0x00 + s + 0x00 + p -> empty
)

const keySeparator = byte(0x00)

// BadgerEngine provides persistent triple storage using BadgerDB.
//
// Every triple is written under all three permutation prefixes so any
// partially bound pattern resolves with a single prefix scan. Index
// entries carry no value; the triple is reconstructed from the key,
// whose segments are the N-Triples serializations of the terms
// (N-Triples text never contains a NUL byte, so 0x00 is a safe
// separator).
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("./data/huginn")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	engine.Insert(rdf.Triple{
//		Subject:   rdf.IRI("http://example.org/b1"),
//		Predicate: rdf.TypePredicate,
//		Object:    rdf.SchemaIRI("Book"),
//	})
//
// Thread Safety:
//
//	Safe for concurrent use from multiple goroutines.
type BadgerEngine struct {
	db     *badger.DB
	mu     sync.RWMutex // guards closed
	closed bool
}

// BadgerOptions configures the BadgerDB engine.
type BadgerOptions struct {
	// DataDir is the directory for storing data files. Required unless
	// InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode. Useful for testing;
	// data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write. Slower but more durable.
	SyncWrites bool

	// Logger for BadgerDB internal logging. Nil silences it.
	Logger badger.Logger
}

// NewBadgerEngine creates a persistent engine with default settings.
func NewBadgerEngine(dataDir string) (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{DataDir: dataDir})
}

// NewBadgerEngineInMemory creates an in-memory BadgerDB for testing.
// Data is lost when the engine is closed.
func NewBadgerEngineInMemory() (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{InMemory: true})
}

// NewBadgerEngineWithOptions creates a BadgerEngine with custom
// configuration.
func NewBadgerEngineWithOptions(opts BadgerOptions) (*BadgerEngine, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	// Memory-constrained defaults; triple index entries are small and
	// value-free, so large memtables buy nothing.
	badgerOpts = badgerOpts.
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &BadgerEngine{db: db}, nil
}

// ============================================================================
// Key encoding
// ============================================================================

func tripleKey(prefix byte, a, b, c string) []byte {
	key := make([]byte, 0, 1+len(a)+1+len(b)+1+len(c))
	key = append(key, prefix)
	key = append(key, a...)
	key = append(key, keySeparator)
	key = append(key, b...)
	key = append(key, keySeparator)
	key = append(key, c...)
	return key
}

// scanPrefix builds the longest prefix the bound pattern slots allow for
// the given permutation. Each bound segment is terminated by the
// separator so <http://a> never matches <http://ab>.
func scanPrefix(prefix byte, bound ...string) []byte {
	key := []byte{prefix}
	for _, seg := range bound {
		key = append(key, seg...)
		key = append(key, keySeparator)
	}
	return key
}

// decodeTriple reconstructs a triple from an index key.
func decodeTriple(key []byte) (rdf.Triple, error) {
	if len(key) < 2 {
		return rdf.Triple{}, fmt.Errorf("storage: short index key")
	}
	segs := bytes.SplitN(key[1:], []byte{keySeparator}, 3)
	if len(segs) != 3 {
		return rdf.Triple{}, fmt.Errorf("storage: malformed index key")
	}

	var sTok, pTok, oTok string
	switch key[0] {
	case prefixSPO:
		sTok, pTok, oTok = string(segs[0]), string(segs[1]), string(segs[2])
	case prefixPOS:
		pTok, oTok, sTok = string(segs[0]), string(segs[1]), string(segs[2])
	case prefixOSP:
		oTok, sTok, pTok = string(segs[0]), string(segs[1]), string(segs[2])
	default:
		return rdf.Triple{}, fmt.Errorf("storage: unknown key prefix 0x%02x", key[0])
	}

	s, err := rdf.ParseTerm(sTok)
	if err != nil {
		return rdf.Triple{}, err
	}
	p, err := rdf.ParseTerm(pTok)
	if err != nil {
		return rdf.Triple{}, err
	}
	pred, ok := p.(rdf.IRI)
	if !ok {
		return rdf.Triple{}, fmt.Errorf("storage: non-IRI predicate in index key")
	}
	o, err := rdf.ParseTerm(oTok)
	if err != nil {
		return rdf.Triple{}, err
	}
	return rdf.Triple{Subject: s, Predicate: pred, Object: o}, nil
}

// ============================================================================
// Engine implementation
// ============================================================================

func (e *BadgerEngine) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrStorageClosed
	}
	return nil
}

// Insert adds a triple, returning true if it was newly added.
func (e *BadgerEngine) Insert(t rdf.Triple) (bool, error) {
	if err := e.checkOpen(); err != nil {
		return false, err
	}
	s, p, o := t.Subject.String(), t.Predicate.String(), t.Object.String()
	spo := tripleKey(prefixSPO, s, p, o)

	added := false
	err := e.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(spo)
		if err == nil {
			return nil // already present
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Set(spo, nil); err != nil {
			return err
		}
		if err := txn.Set(tripleKey(prefixPOS, p, o, s), nil); err != nil {
			return err
		}
		if err := txn.Set(tripleKey(prefixOSP, o, s, p), nil); err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to insert triple: %w", err)
	}
	return added, nil
}

// Delete removes a triple, returning true if it was present.
func (e *BadgerEngine) Delete(t rdf.Triple) (bool, error) {
	if err := e.checkOpen(); err != nil {
		return false, err
	}
	s, p, o := t.Subject.String(), t.Predicate.String(), t.Object.String()
	spo := tripleKey(prefixSPO, s, p, o)

	removed := false
	err := e.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(spo)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(spo); err != nil {
			return err
		}
		if err := txn.Delete(tripleKey(prefixPOS, p, o, s)); err != nil {
			return err
		}
		if err := txn.Delete(tripleKey(prefixOSP, o, s, p)); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete triple: %w", err)
	}
	return removed, nil
}

// Match streams triples satisfying the pattern in index key order.
//
// The scan index is chosen by the leftmost-bound rule: subject bound →
// SPO, else predicate bound → POS, else object bound → OSP, else a full
// SPO scan. Results within one index are lexicographically ordered by
// key, which makes query evaluation deterministic.
func (e *BadgerEngine) Match(ctx context.Context, pat Pattern, fn Visitor) error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	var prefix []byte
	switch {
	case pat.Subject != nil && pat.Predicate != nil:
		prefix = scanPrefix(prefixSPO, pat.Subject.String(), pat.Predicate.String())
	case pat.Subject != nil:
		prefix = scanPrefix(prefixSPO, pat.Subject.String())
	case pat.Predicate != nil && pat.Object != nil:
		prefix = scanPrefix(prefixPOS, pat.Predicate.String(), pat.Object.String())
	case pat.Predicate != nil:
		prefix = scanPrefix(prefixPOS, pat.Predicate.String())
	case pat.Object != nil:
		prefix = scanPrefix(prefixOSP, pat.Object.String())
	default:
		prefix = []byte{prefixSPO}
	}

	err := e.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.PrefetchValues = false
		itOpts.Prefix = prefix
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := decodeTriple(it.Item().Key())
			if err != nil {
				return err
			}
			if !pat.Matches(t) {
				continue
			}
			if err := fn(t); err != nil {
				return err
			}
		}
		return nil
	})
	if err == ErrIterationStopped {
		return nil
	}
	return err
}

// Count returns the number of stored triples by scanning the SPO index.
func (e *BadgerEngine) Count() (int64, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	var n int64
	prefix := []byte{prefixSPO}
	err := e.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.PrefetchValues = false
		itOpts.Prefix = prefix
		it := txn.NewIterator(itOpts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Clear removes all triples.
func (e *BadgerEngine) Clear() error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := e.db.DropAll(); err != nil {
		return fmt.Errorf("failed to clear storage: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying database.
func (e *BadgerEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.db.Close()
}
