package snapshot

import (
	"github.com/snapstore-db/snapstore/pkg/domain"
	"github.com/snapstore-db/snapstore/pkg/storage"
)

// DatabaseStats summarizes a database's schema and record counts.
type DatabaseStats struct {
	DBName  string       `json:"dbName"`
	Version uint64       `json:"version"`
	Stores  []StoreStats `json:"stores"`
}

// StoreStats summarizes one store.
type StoreStats struct {
	Name          string         `json:"name"`
	Count         int            `json:"count"`
	KeyPath       domain.KeyPath `json:"keyPath"`
	AutoIncrement bool           `json:"autoIncrement"`
	Indexes       []string       `json:"indexes"`
}

// Stats reports the database's stores with their counts and structural
// metadata, in store-name order.
func Stats(db *storage.Database) (*DatabaseStats, error) {
	stats := &DatabaseStats{
		DBName:  db.Name(),
		Version: db.Version(),
		Stores:  make([]StoreStats, 0, len(db.StoreNames())),
	}

	for _, name := range db.StoreNames() {
		tx, err := db.Begin(storage.ReadOnly)
		if err != nil {
			return nil, err
		}
		store, err := tx.Store(name)
		if err != nil {
			tx.Abort()
			return nil, err
		}
		count, err := store.Count()
		if err != nil {
			tx.Abort()
			return nil, err
		}
		specs, err := store.Indexes()
		if err != nil {
			tx.Abort()
			return nil, err
		}
		indexes := make([]string, 0, len(specs))
		for _, spec := range specs {
			indexes = append(indexes, spec.Name)
		}
		stats.Stores = append(stats.Stores, StoreStats{
			Name:          name,
			Count:         count,
			KeyPath:       store.KeyPath(),
			AutoIncrement: store.AutoIncrement(),
			Indexes:       indexes,
		})
		tx.Abort()
	}

	return stats, nil
}
