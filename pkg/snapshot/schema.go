package snapshot

import (
	"fmt"
	"sort"

	"github.com/snapstore-db/snapstore/pkg/storage"
)

// ReplaySchema ensures every store and index named in the document exists
// with matching structure. It only adds missing structure: a store already
// present is left untouched, even if its shape differs from the snapshot.
// It must run inside a version-change transaction and is rejected elsewhere.
func ReplaySchema(tx *storage.Txn, doc *Document) error {
	if tx.Mode() != storage.VersionChange {
		return fmt.Errorf("schema replay requires a versionchange transaction, got %s", tx.Mode())
	}

	names := make([]string, 0, len(doc.Stores))
	for name := range doc.Stores {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		snap := doc.Stores[name]
		if tx.HasStore(name) {
			continue
		}
		store, err := tx.CreateStore(name, snap.KeyPath, snap.AutoIncrement)
		if err != nil {
			return fmt.Errorf("failed to create store %s: %w", name, err)
		}
		for _, idx := range snap.Indexes {
			spec := storage.IndexSpec{
				Name:       idx.Name,
				KeyPath:    idx.KeyPath,
				Unique:     idx.Unique,
				MultiEntry: idx.MultiEntry,
			}
			if err := store.CreateIndex(spec); err != nil {
				return fmt.Errorf("failed to create index %s on store %s: %w", idx.Name, name, err)
			}
		}
	}

	return nil
}

// missingStores lists document stores absent from the open database.
func missingStores(db *storage.Database, doc *Document) []string {
	var missing []string
	for name := range doc.Stores {
		if !db.HasStore(name) {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
