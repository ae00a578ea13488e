package storage

import (
	"fmt"
	"sort"
	"sync"
)

// Database is an open connection to a named database. It is an explicit
// handle: every operation happens through it, and Close releases it. A
// database holds its stores entirely in memory, backed by the engine's
// on-disk file when persistence is enabled.
type Database struct {
	name    string
	version uint64
	stores  map[string]*Store
	engine  *Engine

	// txMu serializes transactions. Begin blocks until the previous
	// transaction on this database commits or aborts.
	txMu sync.Mutex

	closedMu sync.Mutex
	closed   bool
}

// Name returns the database's logical name.
func (db *Database) Name() string { return db.name }

// Version returns the database's schema version.
func (db *Database) Version() uint64 { return db.version }

// StoreNames returns the names of all stores, sorted.
func (db *Database) StoreNames() []string {
	names := make([]string, 0, len(db.stores))
	for name := range db.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasStore reports whether a store exists.
func (db *Database) HasStore(name string) bool {
	_, exists := db.stores[name]
	return exists
}

// Begin starts a transaction. VersionChange transactions can only be
// started by the engine during a version upgrade; callers get ReadOnly and
// ReadWrite.
func (db *Database) Begin(mode TxnMode) (*Txn, error) {
	if mode == VersionChange {
		return nil, fmt.Errorf("versionchange transactions are only available during a version upgrade")
	}
	return db.begin(mode)
}

func (db *Database) begin(mode TxnMode) (*Txn, error) {
	db.closedMu.Lock()
	closed := db.closed
	db.closedMu.Unlock()
	if closed {
		return nil, fmt.Errorf("database %s is closed", db.name)
	}

	db.txMu.Lock()
	return &Txn{
		db:      db,
		mode:    mode,
		staged:  make(map[string]*storeState),
		created: make(map[string]*Store),
	}, nil
}

// Close flushes the database to disk when persistence is enabled and
// releases the connection. Closing twice is a no-op.
func (db *Database) Close() error {
	db.closedMu.Lock()
	if db.closed {
		db.closedMu.Unlock()
		return nil
	}
	db.closed = true
	db.closedMu.Unlock()

	return db.engine.release(db)
}

// saveAfterCommit persists the database after a write transaction when the
// engine is configured to do so.
func (db *Database) saveAfterCommit() error {
	if db.engine == nil || !db.engine.saveOnCommit {
		return nil
	}
	return db.engine.saveDatabase(db)
}
