// Package huginn provides the main API for embedded Huginn usage.
//
// Huginn analyzes the class structure of an RDF dataset: it builds the
// class-relation graph, simulates random walks over it, prunes weakly
// connected classes, scores every predicate of the surviving classes,
// and optionally feeds the decisions back into the dataset.
//
// Example:
//
//	db, err := huginn.Open("./data", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	if _, err := db.LoadFile(ctx, "dataset.nt"); err != nil {
//		log.Fatal(err)
//	}
//
//	report, err := db.Analyze(ctx, "Book", false)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, class := range report.Keep {
//		fmt.Println("keep", class)
//	}
package huginn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/orneryd/huginn/pkg/cache"
	"github.com/orneryd/huginn/pkg/classifier"
	"github.com/orneryd/huginn/pkg/config"
	"github.com/orneryd/huginn/pkg/history"
	"github.com/orneryd/huginn/pkg/ontology"
	"github.com/orneryd/huginn/pkg/storage"
	"github.com/orneryd/huginn/pkg/store"
)

// ErrClosed is returned by operations on a closed DB.
var ErrClosed = errors.New("huginn: database is closed")

// DB is an open Huginn database.
type DB struct {
	cfg *config.Config

	mu     sync.Mutex
	closed bool

	engine     storage.Engine
	store      *store.Store
	cache      cache.Cache
	classifier classifier.Classifier
}

// Open opens a database under dataDir. A nil config uses the defaults;
// a non-empty dataDir overrides the configured data directory. An empty
// dataDir with no configured directory opens an in-memory database.
func Open(dataDir string, cfg *config.Config) (*DB, error) {
	if cfg == nil {
		cfg = config.Default()
		if dataDir == "" {
			cfg.Database.InMemory = true
			cfg.Cache.InMemory = true
		}
	}
	if dataDir != "" {
		cfg.Database.DataDir = dataDir
	}
	cfg.Derive()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("huginn: %w", err)
	}

	var (
		engine storage.Engine
		err    error
	)
	if cfg.Database.InMemory {
		engine = storage.NewMemoryEngine()
	} else {
		engine, err = storage.NewBadgerEngine(filepath.Join(cfg.Database.DataDir, "triples"))
		if err != nil {
			return nil, fmt.Errorf("huginn: opening storage: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.HistoryPath), 0o755); err != nil {
		engine.Close()
		return nil, fmt.Errorf("huginn: creating history dir: %w", err)
	}
	log, err := history.Open(cfg.Database.HistoryPath)
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("huginn: opening history: %w", err)
	}

	var c cache.Cache
	if cfg.Cache.InMemory {
		c = cache.NewMemoryCache()
	} else {
		c, err = cache.NewFSCache(cfg.Cache.Dir)
		if err != nil {
			log.Close()
			engine.Close()
			return nil, fmt.Errorf("huginn: opening cache: %w", err)
		}
	}

	clf, err := loadClassifier(cfg)
	if err != nil {
		log.Close()
		engine.Close()
		return nil, err
	}

	return &DB{
		cfg:        cfg,
		engine:     engine,
		store:      store.New(engine, log, store.Options{RoutinesDir: cfg.Database.RoutinesDir}),
		cache:      c,
		classifier: clf,
	}, nil
}

// loadClassifier picks the configured classifier: a learned model when
// a path is set, the fixed-confidence stub otherwise.
func loadClassifier(cfg *config.Config) (classifier.Classifier, error) {
	if cfg.Analysis.ModelPath == "" {
		return classifier.Fixed(cfg.Analysis.Confidence), nil
	}
	clf, err := classifier.Load(cfg.Analysis.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("huginn: %w", err)
	}
	return clf, nil
}

// Store returns the underlying store for direct query and maintenance
// access.
func (db *DB) Store() *store.Store { return db.store }

// LoadFile loads an N-Triples file into the database and records the
// load in the history, moving the dataset version.
func (db *DB) LoadFile(ctx context.Context, path string) (storage.LoadStats, error) {
	if err := db.check(); err != nil {
		return storage.LoadStats{}, err
	}
	stats, err := storage.LoadNTriplesFile(db.engine, path)
	if err != nil {
		return stats, fmt.Errorf("huginn: loading %s: %w", path, err)
	}
	if err := db.store.NoteLoad(filepath.Base(path), stats.Inserted); err != nil {
		return stats, err
	}
	return stats, nil
}

// Query runs a read query.
func (db *DB) Query(ctx context.Context, text string) ([]store.Row, error) {
	if err := db.check(); err != nil {
		return nil, err
	}
	return db.store.Query(ctx, text)
}

// Update runs a logged update.
func (db *DB) Update(ctx context.Context, text string) error {
	if err := db.check(); err != nil {
		return err
	}
	return db.store.Update(ctx, text)
}

// Analyze runs the structure analysis pipeline rooted at the given
// class hint. With apply set the analysis decisions are written back to
// the dataset; otherwise it is a dry run.
func (db *DB) Analyze(ctx context.Context, rootHint string, apply bool) (*ontology.Report, error) {
	if err := db.check(); err != nil {
		return nil, err
	}
	analyzer := ontology.NewAnalyzer(ontology.Config{
		Store:      db.store,
		Cache:      db.cache,
		Classifier: db.classifier,
		Dataset:    db.cfg.Analysis.Dataset,
		Apply:      apply,
	})
	return analyzer.Analyze(ctx, rootHint)
}

// HistoryVersion returns the current dataset version.
func (db *DB) HistoryVersion() int { return db.store.HistoryVersion() }

// DumpVersion snapshots the dataset into the configured dump directory
// and returns the snapshot path.
func (db *DB) DumpVersion(ctx context.Context) (string, error) {
	if err := db.check(); err != nil {
		return "", err
	}
	return db.store.DumpVersion(ctx, db.cfg.Database.DumpDir)
}

// Revert rolls the dataset back to an earlier version, preferring a
// snapshot when one exists and replaying the history otherwise.
func (db *DB) Revert(ctx context.Context, version int) error {
	if err := db.check(); err != nil {
		return err
	}
	return db.store.Revert(ctx, version, db.cfg.Database.DumpDir)
}

// RunRoutine executes a named procedure from a routine file.
func (db *DB) RunRoutine(ctx context.Context, file, procedure string) error {
	if err := db.check(); err != nil {
		return err
	}
	return db.store.RunRoutine(ctx, file, procedure)
}

// Close releases the database. Further calls on the DB return
// ErrClosed; Close itself is idempotent.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true

	var errs []error
	if err := db.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := db.engine.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (db *DB) check() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	return nil
}
