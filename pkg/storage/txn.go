package storage

import (
	"errors"
	"fmt"
	"sort"

	"github.com/snapstore-db/snapstore/pkg/domain"
)

// TxnMode selects what a transaction is allowed to do. Structural changes
// (creating stores and indexes) are only permitted in VersionChange mode,
// which is the privileged phase entered through a version upgrade.
type TxnMode int

const (
	ReadOnly TxnMode = iota
	ReadWrite
	VersionChange
)

func (m TxnMode) String() string {
	switch m {
	case ReadOnly:
		return "readonly"
	case ReadWrite:
		return "readwrite"
	case VersionChange:
		return "versionchange"
	default:
		return "unknown"
	}
}

// ErrTxnDone is returned when a finished transaction is used again.
var ErrTxnDone = errors.New("transaction already committed or aborted")

// Txn is a transaction over one database. Writes stage against cloned store
// state and only become visible on Commit; Abort discards everything,
// including stores and indexes created in a version-change transaction.
//
// Transactions are sequential: starting one blocks until the previous one on
// the same database finishes.
type Txn struct {
	db      *Database
	mode    TxnMode
	staged  map[string]*storeState // store name -> staged state, copy-on-write
	created map[string]*Store      // stores created in this txn (versionchange)
	done    bool
}

// Mode returns the transaction's mode.
func (tx *Txn) Mode() TxnMode { return tx.mode }

// Commit installs all staged state. For a store, either every staged write
// becomes visible or, on Abort, none do.
func (tx *Txn) Commit() error {
	if tx.done {
		return ErrTxnDone
	}
	tx.done = true

	for name, store := range tx.created {
		tx.db.stores[name] = store
	}
	for name, staged := range tx.staged {
		if store, exists := tx.db.stores[name]; exists {
			store.state = staged
		}
	}
	tx.db.txMu.Unlock()

	if tx.mode != ReadOnly {
		return tx.db.saveAfterCommit()
	}
	return nil
}

// Abort discards all staged state. Aborting a finished transaction is a
// no-op, so it is safe to defer.
func (tx *Txn) Abort() {
	if tx.done {
		return
	}
	tx.done = true
	tx.staged = nil
	tx.created = nil
	tx.db.txMu.Unlock()
}

// HasStore reports whether a store exists, including stores created earlier
// in this transaction.
func (tx *Txn) HasStore(name string) bool {
	if _, exists := tx.created[name]; exists {
		return true
	}
	_, exists := tx.db.stores[name]
	return exists
}

// Store binds a store to this transaction.
func (tx *Txn) Store(name string) (*StoreTxn, error) {
	if tx.done {
		return nil, ErrTxnDone
	}
	if store, exists := tx.created[name]; exists {
		return &StoreTxn{tx: tx, store: store}, nil
	}
	store, exists := tx.db.stores[name]
	if !exists {
		return nil, fmt.Errorf("store %s does not exist in database %s", name, tx.db.name)
	}
	return &StoreTxn{tx: tx, store: store}, nil
}

// CreateStore creates a store with the given key path and auto-increment
// flag. Only valid in a version-change transaction.
func (tx *Txn) CreateStore(name string, keyPath domain.KeyPath, autoIncrement bool) (*StoreTxn, error) {
	if tx.done {
		return nil, ErrTxnDone
	}
	if tx.mode != VersionChange {
		return nil, fmt.Errorf("create store requires a versionchange transaction, got %s", tx.mode)
	}
	if name == "" {
		return nil, fmt.Errorf("store name cannot be empty")
	}
	if tx.HasStore(name) {
		return nil, fmt.Errorf("store %s already exists in database %s", name, tx.db.name)
	}
	if autoIncrement && keyPath.IsComposite() {
		return nil, fmt.Errorf("store %s: auto-increment cannot be combined with a composite key path", name)
	}

	store := newStore(name, keyPath, autoIncrement)
	tx.created[name] = store
	tx.staged[name] = store.state
	return &StoreTxn{tx: tx, store: store}, nil
}

// stateFor returns the staged state for a store, cloning it on first write.
func (tx *Txn) stateFor(store *Store, write bool) (*storeState, error) {
	if tx.done {
		return nil, ErrTxnDone
	}
	if staged, exists := tx.staged[store.name]; exists {
		return staged, nil
	}
	if !write {
		return store.state, nil
	}
	if tx.mode == ReadOnly {
		return nil, fmt.Errorf("store %s: write not allowed in a readonly transaction", store.name)
	}
	staged := store.state.clone()
	tx.staged[store.name] = staged
	return staged, nil
}

// StoreTxn is a store handle bound to a transaction.
type StoreTxn struct {
	tx    *Txn
	store *Store
}

// Name returns the store's name.
func (s *StoreTxn) Name() string { return s.store.name }

// KeyPath returns the store's key path; empty means out-of-line keys.
func (s *StoreTxn) KeyPath() domain.KeyPath { return s.store.keyPath }

// AutoIncrement reports whether the store generates keys.
func (s *StoreTxn) AutoIncrement() bool { return s.store.autoIncrement }

// Put upserts a value into a store with in-line keys (the key is derived
// from the value via the store's key path, or generated). Returns the key
// the record was stored under.
func (s *StoreTxn) Put(value interface{}) (interface{}, error) {
	state, err := s.tx.stateFor(s.store, true)
	if err != nil {
		return nil, err
	}
	return state.put(s.store, nil, value)
}

// PutWithKey upserts a value under an explicitly supplied key. Only valid
// for stores without a key path.
func (s *StoreTxn) PutWithKey(key, value interface{}) (interface{}, error) {
	state, err := s.tx.stateFor(s.store, true)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, fmt.Errorf("store %s: explicit key cannot be nil", s.store.name)
	}
	return state.put(s.store, key, value)
}

// Get returns the record value stored under a key.
func (s *StoreTxn) Get(key interface{}) (interface{}, bool, error) {
	state, err := s.tx.stateFor(s.store, false)
	if err != nil {
		return nil, false, err
	}
	rec, exists, err := state.get(key)
	if err != nil || !exists {
		return nil, false, err
	}
	return rec.Value, true, nil
}

// Delete removes the record stored under a key, if any.
func (s *StoreTxn) Delete(key interface{}) error {
	state, err := s.tx.stateFor(s.store, true)
	if err != nil {
		return err
	}
	return state.delete(key)
}

// Clear removes all records from the store.
func (s *StoreTxn) Clear() error {
	state, err := s.tx.stateFor(s.store, true)
	if err != nil {
		return err
	}
	state.clear()
	return nil
}

// Count returns the number of records in the store.
func (s *StoreTxn) Count() (int, error) {
	state, err := s.tx.stateFor(s.store, false)
	if err != nil {
		return 0, err
	}
	return len(state.records), nil
}

// Indexes returns the store's index descriptors sorted by name.
func (s *StoreTxn) Indexes() ([]IndexSpec, error) {
	state, err := s.tx.stateFor(s.store, false)
	if err != nil {
		return nil, err
	}
	return state.indexSpecs(), nil
}

// CreateIndex adds a secondary index, building it over existing records.
// Only valid in a version-change transaction.
func (s *StoreTxn) CreateIndex(spec IndexSpec) error {
	if s.tx.mode != VersionChange {
		return fmt.Errorf("create index requires a versionchange transaction, got %s", s.tx.mode)
	}
	state, err := s.tx.stateFor(s.store, true)
	if err != nil {
		return err
	}
	return state.createIndex(s.store.name, spec)
}

// GetByIndex returns the values of all records whose index entry matches the
// given key, in primary-key order.
func (s *StoreTxn) GetByIndex(indexName string, key interface{}) ([]interface{}, error) {
	state, err := s.tx.stateFor(s.store, false)
	if err != nil {
		return nil, err
	}
	idx, exists := state.indexes[indexName]
	if !exists {
		return nil, fmt.Errorf("index %s does not exist on store %s", indexName, s.store.name)
	}
	normalized, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	ids := idx.entries[encodeKey(normalized)]
	records := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		if rec, found := state.records[id]; found {
			records = append(records, rec)
		}
	}
	values := make([]interface{}, len(records))
	for i, rec := range sortRecords(records) {
		values[i] = rec.Value
	}
	return values, nil
}

func sortRecords(records []domain.Record) []domain.Record {
	sorted := append([]domain.Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		return CompareKeys(sorted[i].Key, sorted[j].Key) < 0
	})
	return sorted
}

// OpenCursor returns a cursor over the store's records in ascending
// primary-key order. The cursor is a finite sequence consumed exactly once;
// it cannot be restarted.
func (s *StoreTxn) OpenCursor() (*Cursor, error) {
	state, err := s.tx.stateFor(s.store, false)
	if err != nil {
		return nil, err
	}
	return &Cursor{records: state.orderedRecords()}, nil
}

// Cursor iterates records in ascending primary-key order.
type Cursor struct {
	records []domain.Record
	pos     int
}

// Next returns the next record, or false when the cursor is exhausted.
func (c *Cursor) Next() (domain.Record, bool) {
	if c.pos >= len(c.records) {
		return domain.Record{}, false
	}
	rec := c.records[c.pos]
	c.pos++
	return rec, true
}
