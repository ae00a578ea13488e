package storage

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/snapstore-db/snapstore/pkg/domain"
)

// ErrStaleVersion is returned by Open when the requested version is lower
// than the version already stored.
var ErrStaleVersion = errors.New("requested version is below the stored version")

// UpgradeFunc runs inside the version-change transaction that Open starts
// when a database is created or its version is raised. It is the only place
// stores and indexes can be created.
type UpgradeFunc func(tx *Txn, oldVersion, newVersion uint64) error

// Engine manages named databases under a data directory. Databases are
// retained after their connection closes (and persisted to disk when a data
// directory is configured), so they can be reopened. One live connection per
// database is allowed at a time; DeleteDatabase refuses to act while a
// connection exists.
type Engine struct {
	mu        sync.Mutex
	databases map[string]*Database // all known databases, open or not
	open      map[string]bool      // databases with a live connection

	dataDir      string
	persistent   bool
	saveOnCommit bool
	logger       *zap.SugaredLogger
}

// NewEngine creates a new engine
func NewEngine(options ...Option) *Engine {
	engine := &Engine{
		databases: make(map[string]*Database),
		open:      make(map[string]bool),
		dataDir:   ".",
		logger:    zap.NewNop().Sugar(),
	}
	for _, option := range options {
		option(engine)
	}
	return engine
}

// Open opens or creates a database and returns a live connection handle.
//
// With version 0 an existing database opens at its stored version and a new
// one is created at version 1. A version above the stored one (or a fresh
// creation) runs the upgrade function inside a version-change transaction;
// a version below the stored one fails with ErrStaleVersion. Only one
// connection per database may be open at a time.
func (e *Engine) Open(name string, version uint64, upgrade UpgradeFunc) (*Database, error) {
	if name == "" {
		return nil, &domain.ConnectionError{Database: name, Err: fmt.Errorf("database name cannot be empty")}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.open[name] {
		return nil, &domain.ConnectionError{Database: name, Err: fmt.Errorf("a connection is already open")}
	}

	db, created, err := e.getOrCreateDatabase(name)
	if err != nil {
		return nil, &domain.ConnectionError{Database: name, Err: err}
	}

	oldVersion := db.version
	target := version
	if target == 0 {
		if created {
			target = 1
		} else {
			target = db.version
		}
	}
	if target < db.version {
		return nil, &domain.ConnectionError{
			Database: name,
			Err:      fmt.Errorf("%w: requested %d, stored %d", ErrStaleVersion, target, db.version),
		}
	}

	if created || target > oldVersion {
		db.version = target
		if upgrade != nil {
			tx, err := db.begin(VersionChange)
			if err != nil {
				return nil, &domain.ConnectionError{Database: name, Err: err}
			}
			if err := upgrade(tx, oldVersion, target); err != nil {
				tx.Abort()
				db.version = oldVersion
				return nil, &domain.ConnectionError{Database: name, Err: err}
			}
			if err := tx.Commit(); err != nil {
				db.version = oldVersion
				return nil, &domain.ConnectionError{Database: name, Err: err}
			}
		}
	}

	db.closedMu.Lock()
	db.closed = false
	db.closedMu.Unlock()

	e.databases[name] = db
	e.open[name] = true
	e.logger.Infow("opened database", "name", name, "version", db.version, "stores", len(db.stores))
	return db, nil
}

// getOrCreateDatabase finds a retained database, loads one from disk, or
// builds a fresh one. The second return value reports a fresh creation.
func (e *Engine) getOrCreateDatabase(name string) (*Database, bool, error) {
	if db, exists := e.databases[name]; exists {
		return db, false, nil
	}
	if e.persistent {
		db, err := e.loadDatabase(name)
		if err != nil {
			return nil, false, err
		}
		if db != nil {
			db.engine = e
			return db, false, nil
		}
	}
	db := &Database{
		name:   name,
		stores: make(map[string]*Store),
		engine: e,
	}
	return db, true, nil
}

// release is called by Database.Close.
func (e *Engine) release(db *Database) error {
	e.mu.Lock()
	delete(e.open, db.name)
	e.mu.Unlock()

	if e.persistent {
		if err := e.saveDatabase(db); err != nil {
			return fmt.Errorf("failed to save database %s on close: %w", db.name, err)
		}
	}
	e.logger.Infow("closed database", "name", db.name)
	return nil
}

// Exists reports whether a database is known to the engine, either retained
// in memory or present on disk.
func (e *Engine) Exists(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.databases[name]; ok {
		return true
	}
	if e.persistent {
		if _, err := os.Stat(e.databasePath(name)); err == nil {
			return true
		}
	}
	return false
}

// DeleteDatabase removes a database entirely, including its on-disk file.
// This is destructive and irreversible. The deletion is refused with a
// BlockedDeleteError while a live connection to the database exists.
func (e *Engine) DeleteDatabase(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.open[name] {
		return &domain.BlockedDeleteError{Database: name}
	}
	delete(e.databases, name)
	if !e.persistent {
		return nil
	}
	if err := os.Remove(e.databasePath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete database %s: %w", name, err)
	}
	e.logger.Infow("deleted database", "name", name)
	return nil
}
