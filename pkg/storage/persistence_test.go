package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapstore-db/snapstore/pkg/domain"
)

func TestPersistence_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	engine := NewEngine(WithDataDir(dir))

	db := openTestDB(t, engine, "testdb", func(tx *Txn) error {
		store, err := tx.CreateStore("users", domain.NewKeyPath("id"), true)
		if err != nil {
			return err
		}
		if err := store.CreateIndex(IndexSpec{Name: "email", KeyPath: domain.NewKeyPath("email"), Unique: true}); err != nil {
			return err
		}
		_, err = tx.CreateStore("kv", domain.KeyPath{}, false)
		return err
	})

	tx, err := db.Begin(ReadWrite)
	require.NoError(t, err)
	users, err := tx.Store("users")
	require.NoError(t, err)
	_, err = users.Put(map[string]interface{}{"id": 1, "email": "a@example.com"})
	require.NoError(t, err)
	kv, err := tx.Store("kv")
	require.NoError(t, err)
	_, err = kv.PutWithKey("greeting", map[string]interface{}{"text": "hello"})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NoError(t, db.Close())

	// The database file exists on disk.
	_, err = os.Stat(filepath.Join(dir, "testdb"+FileExtension))
	require.NoError(t, err)

	// A fresh engine loads the file from scratch.
	engine2 := NewEngine(WithDataDir(dir))
	db2, err := engine2.Open("testdb", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), db2.Version())
	assert.ElementsMatch(t, []string{"users", "kv"}, db2.StoreNames())

	tx, err = db2.Begin(ReadOnly)
	require.NoError(t, err)
	defer tx.Abort()

	users, err = tx.Store("users")
	require.NoError(t, err)
	assert.Equal(t, domain.NewKeyPath("id"), users.KeyPath())
	assert.True(t, users.AutoIncrement())
	count, err := users.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The index descriptor and its entries survive the reload.
	specs, err := users.Indexes()
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, IndexSpec{Name: "email", KeyPath: domain.NewKeyPath("email"), Unique: true}, specs[0])
	values, err := users.GetByIndex("email", "a@example.com")
	require.NoError(t, err)
	assert.Len(t, values, 1)

	kv, err = tx.Store("kv")
	require.NoError(t, err)
	_, found, err := kv.Get("greeting")
	require.NoError(t, err)
	assert.True(t, found)

	tx.Abort()
	require.NoError(t, db2.Close())
}

func TestPersistence_AutoIncrementCounterSurvives(t *testing.T) {
	dir := t.TempDir()
	engine := NewEngine(WithDataDir(dir))

	db := openTestDB(t, engine, "testdb", func(tx *Txn) error {
		_, err := tx.CreateStore("logs", domain.KeyPath{}, true)
		return err
	})
	tx, err := db.Begin(ReadWrite)
	require.NoError(t, err)
	store, err := tx.Store("logs")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = store.Put(map[string]interface{}{"n": i})
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())
	require.NoError(t, db.Close())

	engine2 := NewEngine(WithDataDir(dir))
	db2, err := engine2.Open("testdb", 0, nil)
	require.NoError(t, err)
	tx, err = db2.Begin(ReadWrite)
	require.NoError(t, err)
	store, err = tx.Store("logs")
	require.NoError(t, err)

	// New keys continue after the persisted counter instead of colliding.
	key, err := store.Put(map[string]interface{}{"n": 3})
	require.NoError(t, err)
	assert.Equal(t, float64(4), key)
	require.NoError(t, tx.Commit())
	require.NoError(t, db2.Close())
}

func TestPersistence_SaveOnCommit(t *testing.T) {
	dir := t.TempDir()
	engine := NewEngine(WithDataDir(dir), WithSaveOnCommit(true))

	db := openTestDB(t, engine, "testdb", func(tx *Txn) error {
		_, err := tx.CreateStore("kv", domain.KeyPath{}, false)
		return err
	})
	tx, err := db.Begin(ReadWrite)
	require.NoError(t, err)
	store, err := tx.Store("kv")
	require.NoError(t, err)
	_, err = store.PutWithKey(1, map[string]interface{}{"a": 1})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	// The commit already wrote the file, before any Close.
	_, err = os.Stat(filepath.Join(dir, "testdb"+FileExtension))
	assert.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestReadHeader_RejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad"+FileExtension)
	require.NoError(t, os.WriteFile(path, []byte("not a database file"), 0644))

	engine := NewEngine(WithDataDir(dir))
	_, err := engine.Open("bad", 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid file header")
}

func TestPersistence_HighlyCompressibleData(t *testing.T) {
	dir := t.TempDir()
	engine := NewEngine(WithDataDir(dir))

	db := openTestDB(t, engine, "blobs", func(tx *Txn) error {
		_, err := tx.CreateStore("chunks", domain.KeyPath{}, false)
		return err
	})

	// Identical long values compress far beyond 10:1; loading must not
	// assume any fixed compression ratio.
	blob := strings.Repeat("x", 4096)
	tx, err := db.Begin(ReadWrite)
	require.NoError(t, err)
	chunks, err := tx.Store("chunks")
	require.NoError(t, err)
	for i := 0; i < 64; i++ {
		_, err = chunks.PutWithKey(i, map[string]interface{}{"blob": blob})
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())
	require.NoError(t, db.Close())

	reopened := NewEngine(WithDataDir(dir))
	db2, err := reopened.Open("blobs", 0, nil)
	require.NoError(t, err)
	defer db2.Close()

	tx2, err := db2.Begin(ReadOnly)
	require.NoError(t, err)
	defer tx2.Abort()
	chunks2, err := tx2.Store("chunks")
	require.NoError(t, err)
	count, err := chunks2.Count()
	require.NoError(t, err)
	assert.Equal(t, 64, count)
	value, found, err := chunks2.Get(3)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, blob, value.(map[string]interface{})["blob"])
}
