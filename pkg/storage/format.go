package storage

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/snapstore-db/snapstore/pkg/domain"
)

const (
	// Magic bytes to identify our file format
	MagicBytes = "SNST"
	// Current version
	FormatVersion = 1
	// File extension for database files
	FileExtension = ".snst"
)

// FileHeader represents the header of a database file
type FileHeader struct {
	Magic    [4]byte // "SNST"
	Version  uint8   // Format version
	Flags    uint8   // Reserved for future use
	Reserved [2]byte // Reserved for future use
}

// WriteHeader writes the file header to the given writer
func WriteHeader(w io.Writer) error {
	header := FileHeader{
		Magic:    [4]byte{'S', 'N', 'S', 'T'},
		Version:  FormatVersion,
		Flags:    0,
		Reserved: [2]byte{0, 0},
	}

	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates the file header
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Validate magic bytes
	if string(header.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("invalid file format: expected %s, got %s", MagicBytes, string(header.Magic[:]))
	}

	// Validate version
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported file version: %d", header.Version)
	}

	return &header, nil
}

// databaseFile is the msgpack structure of a persisted database.
type databaseFile struct {
	Name    string               `msgpack:"name"`
	Version uint64               `msgpack:"version"`
	Stores  map[string]storeFile `msgpack:"stores"`
}

type storeFile struct {
	KeyPath       domain.KeyPath  `msgpack:"key_path"`
	AutoIncrement bool            `msgpack:"auto_increment"`
	NextKey       uint64          `msgpack:"next_key"`
	Indexes       []indexFile     `msgpack:"indexes"`
	Records       []domain.Record `msgpack:"records"`
}

type indexFile struct {
	Name       string         `msgpack:"name"`
	KeyPath    domain.KeyPath `msgpack:"key_path"`
	Unique     bool           `msgpack:"unique"`
	MultiEntry bool           `msgpack:"multi_entry"`
}
