package storage

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/snapstore-db/snapstore/pkg/domain"
)

// IndexSpec describes a secondary index over a store.
type IndexSpec struct {
	Name       string
	KeyPath    domain.KeyPath
	Unique     bool
	MultiEntry bool
}

// Store is a named collection of keyed records within a database. Its key
// path and auto-increment flag are fixed at creation time; indexes may be
// added during a version-change transaction.
type Store struct {
	name          string
	keyPath       domain.KeyPath
	autoIncrement bool
	state         *storeState
}

// storeState holds the mutable contents of a store. Write transactions stage
// against a clone and install it on commit, so an aborted transaction never
// leaves a partially written store.
type storeState struct {
	records map[string]domain.Record // canonical encoded key -> record
	indexes map[string]*indexState   // index name -> spec and entries
	nextKey uint64                   // auto-increment generator, next value
}

type indexState struct {
	spec    IndexSpec
	entries map[string][]string // encoded index key -> encoded primary keys
}

func newStore(name string, keyPath domain.KeyPath, autoIncrement bool) *Store {
	return &Store{
		name:          name,
		keyPath:       keyPath,
		autoIncrement: autoIncrement,
		state:         newStoreState(),
	}
}

func newStoreState() *storeState {
	return &storeState{
		records: make(map[string]domain.Record),
		indexes: make(map[string]*indexState),
		nextKey: 1,
	}
}

// Name returns the store's name.
func (s *Store) Name() string { return s.name }

// KeyPath returns the store's key path; empty means out-of-line keys.
func (s *Store) KeyPath() domain.KeyPath { return s.keyPath }

// AutoIncrement reports whether the store generates keys.
func (s *Store) AutoIncrement() bool { return s.autoIncrement }

// clone deep-copies a store state for transaction staging.
func (st *storeState) clone() *storeState {
	staged := &storeState{
		records: make(map[string]domain.Record, len(st.records)),
		indexes: make(map[string]*indexState, len(st.indexes)),
		nextKey: st.nextKey,
	}
	for k, rec := range st.records {
		staged.records[k] = rec
	}
	for name, idx := range st.indexes {
		entries := make(map[string][]string, len(idx.entries))
		for k, ids := range idx.entries {
			entries[k] = append([]string(nil), ids...)
		}
		staged.indexes[name] = &indexState{spec: idx.spec, entries: entries}
	}
	return staged
}

// put upserts a record. An explicit key is required for out-of-line stores
// without auto-increment and forbidden for stores with a key path.
func (st *storeState) put(store *Store, key, value interface{}) (interface{}, error) {
	if !store.keyPath.IsEmpty() {
		if key != nil {
			return nil, fmt.Errorf("store %s uses in-line keys, explicit key not allowed", store.name)
		}
		resolved, found, err := store.keyPath.Resolve(value)
		if err != nil {
			return nil, err
		}
		if found {
			key = resolved
		} else if store.autoIncrement {
			key = float64(st.nextKey)
			injected, err := injectKey(value, store.keyPath.Single, key)
			if err != nil {
				return nil, err
			}
			value = injected
		} else {
			return nil, fmt.Errorf("value does not contain key path %q for store %s", store.keyPath, store.name)
		}
	} else if key == nil {
		if !store.autoIncrement {
			return nil, fmt.Errorf("store %s requires an explicit key", store.name)
		}
		key = float64(st.nextKey)
	}

	normalized, err := NormalizeKey(key)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", store.name, err)
	}
	encoded := encodeKey(normalized)

	if err := st.checkUniqueConstraints(store, encoded, value); err != nil {
		return nil, err
	}

	if old, exists := st.records[encoded]; exists {
		st.removeIndexEntries(encoded, old.Value)
	}
	st.records[encoded] = domain.Record{Key: normalized, Value: value}
	st.addIndexEntries(encoded, value)
	st.bumpKeyGenerator(normalized)

	return normalized, nil
}

// bumpKeyGenerator keeps the auto-increment generator ahead of any
// explicitly supplied numeric key.
func (st *storeState) bumpKeyGenerator(key interface{}) {
	f, ok := key.(float64)
	if !ok || math.IsNaN(f) || f < float64(st.nextKey) {
		return
	}
	// A key at or beyond the uint64 range pins the generator at its maximum
	// instead of overflowing the conversion.
	if f >= math.MaxUint64 {
		st.nextKey = math.MaxUint64
		return
	}
	st.nextKey = uint64(math.Floor(f)) + 1
	if st.nextKey == 0 {
		st.nextKey = 1
	}
}

func (st *storeState) get(key interface{}) (domain.Record, bool, error) {
	normalized, err := NormalizeKey(key)
	if err != nil {
		return domain.Record{}, false, err
	}
	rec, exists := st.records[encodeKey(normalized)]
	return rec, exists, nil
}

func (st *storeState) delete(key interface{}) error {
	normalized, err := NormalizeKey(key)
	if err != nil {
		return err
	}
	encoded := encodeKey(normalized)
	if rec, exists := st.records[encoded]; exists {
		st.removeIndexEntries(encoded, rec.Value)
		delete(st.records, encoded)
	}
	return nil
}

// clear removes all records but keeps the schema and the key generator.
func (st *storeState) clear() {
	st.records = make(map[string]domain.Record)
	for _, idx := range st.indexes {
		idx.entries = make(map[string][]string)
	}
}

// orderedRecords returns all records in ascending primary-key order.
func (st *storeState) orderedRecords() []domain.Record {
	records := make([]domain.Record, 0, len(st.records))
	for _, rec := range st.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return CompareKeys(records[i].Key, records[j].Key) < 0
	})
	return records
}

// createIndex adds an index and builds its entries from existing records.
// Existing records that violate a unique constraint fail the creation.
func (st *storeState) createIndex(storeName string, spec IndexSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("index name cannot be empty")
	}
	if _, exists := st.indexes[spec.Name]; exists {
		return fmt.Errorf("index %s already exists on store %s", spec.Name, storeName)
	}
	idx := &indexState{spec: spec, entries: make(map[string][]string)}
	for encoded, rec := range st.records {
		for _, indexKey := range indexKeysFor(spec, rec.Value) {
			if spec.Unique && len(idx.entries[indexKey]) > 0 {
				return fmt.Errorf("unique index %s on store %s violated by existing records", spec.Name, storeName)
			}
			idx.entries[indexKey] = append(idx.entries[indexKey], encoded)
		}
	}
	st.indexes[spec.Name] = idx
	return nil
}

// indexSpecs returns the store's index descriptors sorted by name.
func (st *storeState) indexSpecs() []IndexSpec {
	specs := make([]IndexSpec, 0, len(st.indexes))
	for _, idx := range st.indexes {
		specs = append(specs, idx.spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

func (st *storeState) checkUniqueConstraints(store *Store, encoded string, value interface{}) error {
	for _, idx := range st.indexes {
		if !idx.spec.Unique {
			continue
		}
		for _, indexKey := range indexKeysFor(idx.spec, value) {
			for _, existing := range idx.entries[indexKey] {
				if existing != encoded {
					return fmt.Errorf("unique index %s on store %s violated", idx.spec.Name, store.name)
				}
			}
		}
	}
	return nil
}

func (st *storeState) addIndexEntries(encoded string, value interface{}) {
	for _, idx := range st.indexes {
		for _, indexKey := range indexKeysFor(idx.spec, value) {
			idx.entries[indexKey] = append(idx.entries[indexKey], encoded)
		}
	}
}

func (st *storeState) removeIndexEntries(encoded string, value interface{}) {
	for _, idx := range st.indexes {
		for _, indexKey := range indexKeysFor(idx.spec, value) {
			ids := idx.entries[indexKey]
			for i, id := range ids {
				if id == encoded {
					idx.entries[indexKey] = append(ids[:i], ids[i+1:]...)
					break
				}
			}
			if len(idx.entries[indexKey]) == 0 {
				delete(idx.entries, indexKey)
			}
		}
	}
}

// indexKeysFor resolves the encoded index keys a value contributes to an
// index. A multi-entry index over an array value indexes each valid element
// separately; otherwise the resolved value is treated as one key. Values the
// key path cannot resolve to a valid key are simply not indexed.
func indexKeysFor(spec IndexSpec, value interface{}) []string {
	resolved, found, err := spec.KeyPath.Resolve(value)
	if err != nil || !found {
		return nil
	}
	if arr, ok := resolved.([]interface{}); ok && spec.MultiEntry {
		seen := make(map[string]bool, len(arr))
		keys := make([]string, 0, len(arr))
		for _, elem := range arr {
			normalized, err := NormalizeKey(elem)
			if err != nil {
				continue
			}
			encoded := encodeKey(normalized)
			if !seen[encoded] {
				seen[encoded] = true
				keys = append(keys, encoded)
			}
		}
		return keys
	}
	normalized, err := NormalizeKey(resolved)
	if err != nil {
		return nil
	}
	return []string{encodeKey(normalized)}
}

// injectKey writes a generated key into the value along the key path,
// creating intermediate objects as needed. The value itself is copied so the
// caller's map is not mutated.
func injectKey(value interface{}, path string, key interface{}) (interface{}, error) {
	root, ok := value.(map[string]interface{})
	if !ok {
		if dv, isValue := value.(domain.Value); isValue {
			root = map[string]interface{}(dv)
		} else {
			return nil, fmt.Errorf("cannot inject generated key into value of type %T", value)
		}
	}

	copied := make(map[string]interface{}, len(root)+1)
	for k, v := range root {
		copied[k] = v
	}

	segments := strings.Split(path, ".")
	current := copied
	for _, segment := range segments[:len(segments)-1] {
		next, exists := current[segment]
		if !exists {
			child := make(map[string]interface{})
			current[segment] = child
			current = child
			continue
		}
		child, ok := next.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("key path %q does not traverse an object", path)
		}
		// Copy the nested object as well before writing into it.
		childCopy := make(map[string]interface{}, len(child)+1)
		for k, v := range child {
			childCopy[k] = v
		}
		current[segment] = childCopy
		current = childCopy
	}
	current[segments[len(segments)-1]] = key
	return copied, nil
}
