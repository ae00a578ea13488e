package snapshot

import (
	"github.com/snapstore-db/snapstore/pkg/domain"
)

// Document is the portable, schema-preserving snapshot of a whole database.
// It is created fresh by each export, never mutated afterward, and consumed
// exactly once by an import. The JSON field names are the wire format.
type Document struct {
	DBName     string                    `json:"dbName"`
	Version    uint64                    `json:"version"`
	ExportDate string                    `json:"exportDate"`
	Stores     map[string]*StoreSnapshot `json:"stores"`
}

// StoreSnapshot captures one store's structural metadata and its full
// record set in ascending primary-key order.
type StoreSnapshot struct {
	KeyPath       domain.KeyPath  `json:"keyPath"`
	AutoIncrement bool            `json:"autoIncrement"`
	Indexes       []IndexSnapshot `json:"indexes"`
	Data          []domain.Record `json:"data"`
	RecordCount   int             `json:"recordCount"`
}

// IndexSnapshot describes a secondary index.
type IndexSnapshot struct {
	Name       string         `json:"name"`
	KeyPath    domain.KeyPath `json:"keyPath"`
	Unique     bool           `json:"unique"`
	MultiEntry bool           `json:"multiEntry"`
}
