package snapshot

import (
	"time"

	"github.com/snapstore-db/snapstore/pkg/domain"
	"github.com/snapstore-db/snapstore/pkg/storage"
)

// Export serializes an entire database into a snapshot document. Every
// store is read in full, one read-only transaction per store, sequentially.
// Any store's failure aborts the whole export; no partial document is ever
// returned.
func Export(db *storage.Database) (*Document, error) {
	doc := &Document{
		DBName:     db.Name(),
		Version:    db.Version(),
		ExportDate: time.Now().UTC().Format(time.RFC3339),
		Stores:     make(map[string]*StoreSnapshot),
	}

	for _, name := range db.StoreNames() {
		snap, err := exportStore(db, name)
		if err != nil {
			return nil, err
		}
		doc.Stores[name] = snap
	}

	return doc, nil
}

// exportStore captures one store's records and structural metadata. Both the
// key and the value are captured for every record: for stores without a key
// path the key is not recoverable from the value alone.
func exportStore(db *storage.Database, name string) (*StoreSnapshot, error) {
	tx, err := db.Begin(storage.ReadOnly)
	if err != nil {
		return nil, &domain.CursorError{Store: name, Err: err}
	}
	defer tx.Abort()

	store, err := tx.Store(name)
	if err != nil {
		return nil, &domain.CursorError{Store: name, Err: err}
	}

	cursor, err := store.OpenCursor()
	if err != nil {
		return nil, &domain.CursorError{Store: name, Err: err}
	}

	data := make([]domain.Record, 0)
	for {
		rec, ok := cursor.Next()
		if !ok {
			break
		}
		data = append(data, rec)
	}

	specs, err := store.Indexes()
	if err != nil {
		return nil, &domain.CursorError{Store: name, Err: err}
	}
	indexes := make([]IndexSnapshot, 0, len(specs))
	for _, spec := range specs {
		indexes = append(indexes, IndexSnapshot{
			Name:       spec.Name,
			KeyPath:    spec.KeyPath,
			Unique:     spec.Unique,
			MultiEntry: spec.MultiEntry,
		})
	}

	return &StoreSnapshot{
		KeyPath:       store.KeyPath(),
		AutoIncrement: store.AutoIncrement(),
		Indexes:       indexes,
		Data:          data,
		RecordCount:   len(data),
	}, nil
}
