package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/snapstore-db/snapstore/pkg/domain"
)

// maxDecompressedSize bounds the decompress buffer growth for a single
// database file.
const maxDecompressedSize = 1 << 30

func (e *Engine) databasePath(name string) string {
	return filepath.Join(e.dataDir, name+FileExtension)
}

// saveDatabase writes a database to its file: msgpack-encoded, lz4-compressed
// behind the format header. The write goes to a uniquely named temporary
// file first and is renamed into place, so a crash never leaves a torn file.
func (e *Engine) saveDatabase(db *Database) error {
	data := databaseFile{
		Name:    db.name,
		Version: db.version,
		Stores:  make(map[string]storeFile, len(db.stores)),
	}
	for name, store := range db.stores {
		sf := storeFile{
			KeyPath:       store.keyPath,
			AutoIncrement: store.autoIncrement,
			NextKey:       store.state.nextKey,
			Records:       store.state.orderedRecords(),
		}
		for _, spec := range store.state.indexSpecs() {
			sf.Indexes = append(sf.Indexes, indexFile{
				Name:       spec.Name,
				KeyPath:    spec.KeyPath,
				Unique:     spec.Unique,
				MultiEntry: spec.MultiEntry,
			})
		}
		data.Stores[name] = sf
	}

	msgpackData, err := msgpack.Marshal(&data)
	if err != nil {
		return fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	compressedData := make([]byte, lz4.CompressBlockBound(len(msgpackData)))
	var hashTable [1 << 16]int
	n, err := lz4.CompressBlock(msgpackData, compressedData, hashTable[:])
	if err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}
	compressedData = compressedData[:n]

	if err := os.MkdirAll(e.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	var buf bytes.Buffer
	if err := WriteHeader(&buf); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	// An uncompressible block makes CompressBlock return 0; store raw with a
	// flag so load knows not to decompress.
	if n == 0 {
		buf.Bytes()[5] = 1 // Flags byte: raw payload
		if _, err := buf.Write(msgpackData); err != nil {
			return fmt.Errorf("failed to write data: %w", err)
		}
	} else if _, err := buf.Write(compressedData); err != nil {
		return fmt.Errorf("failed to write compressed data: %w", err)
	}

	filename := e.databasePath(db.name)
	tempFile := filename + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tempFile, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write database file: %w", err)
	}
	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename database file: %w", err)
	}

	e.logger.Debugw("saved database", "name", db.name, "bytes", buf.Len())
	return nil
}

// loadDatabase reads a database file. A missing file returns (nil, nil).
func (e *Engine) loadDatabase(name string) (*Database, error) {
	file, err := os.Open(e.databasePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open database file: %w", err)
	}
	defer file.Close()

	header, err := ReadHeader(file)
	if err != nil {
		return nil, fmt.Errorf("invalid file header: %w", err)
	}

	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read database file: %w", err)
	}

	msgpackData := payload
	if header.Flags == 0 {
		// lz4 blocks do not carry their uncompressed length, so grow the
		// buffer until the block fits; repetitive records routinely compress
		// far better than 10:1.
		size := len(payload)*4 + 64
		for {
			decompressed := make([]byte, size)
			n, err := lz4.UncompressBlock(payload, decompressed)
			if err == nil {
				msgpackData = decompressed[:n]
				break
			}
			if size >= maxDecompressedSize {
				return nil, fmt.Errorf("failed to decompress data: %w", err)
			}
			size *= 4
		}
	}

	var data databaseFile
	if err := msgpack.Unmarshal(msgpackData, &data); err != nil {
		return nil, fmt.Errorf("failed to decode MessagePack: %w", err)
	}

	db := &Database{
		name:    data.Name,
		version: data.Version,
		stores:  make(map[string]*Store, len(data.Stores)),
	}
	for storeName, sf := range data.Stores {
		store := newStore(storeName, sf.KeyPath, sf.AutoIncrement)
		store.state.nextKey = sf.NextKey
		if store.state.nextKey == 0 {
			store.state.nextKey = 1
		}
		// Indexes are rebuilt from the records rather than persisted.
		for _, idx := range sf.Indexes {
			spec := IndexSpec{Name: idx.Name, KeyPath: idx.KeyPath, Unique: idx.Unique, MultiEntry: idx.MultiEntry}
			if err := store.state.createIndex(storeName, spec); err != nil {
				return nil, fmt.Errorf("failed to rebuild index %s on store %s: %w", idx.Name, storeName, err)
			}
		}
		for _, rec := range sf.Records {
			key, err := NormalizeKey(rec.Key)
			if err != nil {
				return nil, fmt.Errorf("invalid key in store %s: %w", storeName, err)
			}
			encoded := encodeKey(key)
			store.state.records[encoded] = domain.Record{Key: key, Value: rec.Value}
			store.state.addIndexEntries(encoded, rec.Value)
		}
		db.stores[storeName] = store
	}

	e.logger.Debugw("loaded database", "name", db.name, "version", db.version, "stores", len(db.stores))
	return db, nil
}
