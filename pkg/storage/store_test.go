package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapstore-db/snapstore/pkg/domain"
)

func openTestDB(t *testing.T, engine *Engine, name string, setup func(tx *Txn) error) *Database {
	t.Helper()
	db, err := engine.Open(name, 1, func(tx *Txn, oldVersion, newVersion uint64) error {
		if setup != nil {
			return setup(tx)
		}
		return nil
	})
	require.NoError(t, err)
	return db
}

func TestStore_InlineKeys(t *testing.T) {
	engine := NewEngine()
	db := openTestDB(t, engine, "testdb", func(tx *Txn) error {
		_, err := tx.CreateStore("users", domain.NewKeyPath("id"), false)
		return err
	})

	tx, err := db.Begin(ReadWrite)
	require.NoError(t, err)
	store, err := tx.Store("users")
	require.NoError(t, err)

	key, err := store.Put(map[string]interface{}{"id": 3, "name": "x"})
	require.NoError(t, err)
	assert.Equal(t, float64(3), key)

	// An explicit key is not allowed when the store has a key path.
	_, err = store.PutWithKey(99, map[string]interface{}{"id": 4})
	assert.Error(t, err)

	// A value without the key path property cannot be stored.
	_, err = store.Put(map[string]interface{}{"name": "no id"})
	assert.Error(t, err)

	value, found, err := store.Get(3)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "x", value.(map[string]interface{})["name"])

	require.NoError(t, tx.Commit())
}

func TestStore_OutOfLineKeys(t *testing.T) {
	engine := NewEngine()
	db := openTestDB(t, engine, "testdb", func(tx *Txn) error {
		_, err := tx.CreateStore("kv", domain.KeyPath{}, false)
		return err
	})

	tx, err := db.Begin(ReadWrite)
	require.NoError(t, err)
	store, err := tx.Store("kv")
	require.NoError(t, err)

	_, err = store.PutWithKey(7, map[string]interface{}{"a": 1})
	require.NoError(t, err)

	// A key is mandatory without a key path or auto-increment.
	_, err = store.Put(map[string]interface{}{"a": 2})
	assert.Error(t, err)

	value, found, err := store.Get(7)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, value.(map[string]interface{})["a"])

	// Upsert replaces the value under the same key.
	_, err = store.PutWithKey(7, map[string]interface{}{"a": 99})
	require.NoError(t, err)
	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, tx.Commit())
}

func TestStore_AutoIncrement(t *testing.T) {
	engine := NewEngine()
	db := openTestDB(t, engine, "testdb", func(tx *Txn) error {
		if _, err := tx.CreateStore("logs", domain.NewKeyPath("id"), true); err != nil {
			return err
		}
		_, err := tx.CreateStore("events", domain.KeyPath{}, true)
		return err
	})

	tx, err := db.Begin(ReadWrite)
	require.NoError(t, err)

	logs, err := tx.Store("logs")
	require.NoError(t, err)

	// A generated key is injected into the value along the key path.
	key, err := logs.Put(map[string]interface{}{"msg": "first"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), key)

	value, found, err := logs.Get(1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float64(1), value.(map[string]interface{})["id"])

	// An explicit in-line key bumps the generator past it.
	_, err = logs.Put(map[string]interface{}{"id": 10, "msg": "explicit"})
	require.NoError(t, err)
	key, err = logs.Put(map[string]interface{}{"msg": "after"})
	require.NoError(t, err)
	assert.Equal(t, float64(11), key)

	// Out-of-line auto-increment generates keys without touching the value.
	events, err := tx.Store("events")
	require.NoError(t, err)
	key, err = events.Put(map[string]interface{}{"kind": "boot"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), key)

	require.NoError(t, tx.Commit())
}

func TestStore_AutoIncrementDoesNotMutateCaller(t *testing.T) {
	engine := NewEngine()
	db := openTestDB(t, engine, "testdb", func(tx *Txn) error {
		_, err := tx.CreateStore("logs", domain.NewKeyPath("id"), true)
		return err
	})

	tx, err := db.Begin(ReadWrite)
	require.NoError(t, err)
	store, err := tx.Store("logs")
	require.NoError(t, err)

	original := map[string]interface{}{"msg": "hello"}
	_, err = store.Put(original)
	require.NoError(t, err)
	_, exists := original["id"]
	assert.False(t, exists, "caller's value must not be mutated by key injection")

	tx.Abort()
}

func TestStore_DeleteAndClear(t *testing.T) {
	engine := NewEngine()
	db := openTestDB(t, engine, "testdb", func(tx *Txn) error {
		_, err := tx.CreateStore("kv", domain.KeyPath{}, false)
		return err
	})

	tx, err := db.Begin(ReadWrite)
	require.NoError(t, err)
	store, err := tx.Store("kv")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		_, err = store.PutWithKey(i, map[string]interface{}{"n": i})
		require.NoError(t, err)
	}

	require.NoError(t, store.Delete(2))
	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.Clear())
	count, err = store.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, tx.Commit())
}

func TestStore_CursorOrder(t *testing.T) {
	engine := NewEngine()
	db := openTestDB(t, engine, "testdb", func(tx *Txn) error {
		_, err := tx.CreateStore("kv", domain.KeyPath{}, false)
		return err
	})

	tx, err := db.Begin(ReadWrite)
	require.NoError(t, err)
	store, err := tx.Store("kv")
	require.NoError(t, err)

	// Inserted out of order, across key kinds.
	keys := []interface{}{"b", 10, []interface{}{1, 2}, 2, "a"}
	for _, key := range keys {
		_, err = store.PutWithKey(key, map[string]interface{}{"k": key})
		require.NoError(t, err)
	}

	cursor, err := store.OpenCursor()
	require.NoError(t, err)

	var got []interface{}
	for {
		rec, ok := cursor.Next()
		if !ok {
			break
		}
		got = append(got, rec.Key)
	}

	// Ascending primary-key order: numbers, then strings, then arrays.
	expected := []interface{}{
		float64(2), float64(10), "a", "b",
		[]interface{}{float64(1), float64(2)},
	}
	assert.Equal(t, expected, got)

	// A cursor is consumed exactly once.
	_, ok := cursor.Next()
	assert.False(t, ok)

	tx.Abort()
}

func TestStore_UniqueIndex(t *testing.T) {
	engine := NewEngine()
	db := openTestDB(t, engine, "testdb", func(tx *Txn) error {
		store, err := tx.CreateStore("users", domain.NewKeyPath("id"), false)
		if err != nil {
			return err
		}
		return store.CreateIndex(IndexSpec{Name: "email", KeyPath: domain.NewKeyPath("email"), Unique: true})
	})

	tx, err := db.Begin(ReadWrite)
	require.NoError(t, err)
	store, err := tx.Store("users")
	require.NoError(t, err)

	_, err = store.Put(map[string]interface{}{"id": 1, "email": "a@example.com"})
	require.NoError(t, err)

	// A second record with the same indexed value violates uniqueness.
	_, err = store.Put(map[string]interface{}{"id": 2, "email": "a@example.com"})
	assert.Error(t, err)

	// Re-upserting the same record does not.
	_, err = store.Put(map[string]interface{}{"id": 1, "email": "a@example.com"})
	require.NoError(t, err)

	require.NoError(t, tx.Commit())
}

func TestStore_MultiEntryIndex(t *testing.T) {
	engine := NewEngine()
	db := openTestDB(t, engine, "testdb", func(tx *Txn) error {
		store, err := tx.CreateStore("posts", domain.NewKeyPath("id"), false)
		if err != nil {
			return err
		}
		return store.CreateIndex(IndexSpec{Name: "tags", KeyPath: domain.NewKeyPath("tags"), MultiEntry: true})
	})

	tx, err := db.Begin(ReadWrite)
	require.NoError(t, err)
	store, err := tx.Store("posts")
	require.NoError(t, err)

	_, err = store.Put(map[string]interface{}{"id": 1, "tags": []interface{}{"go", "db"}})
	require.NoError(t, err)
	_, err = store.Put(map[string]interface{}{"id": 2, "tags": []interface{}{"go"}})
	require.NoError(t, err)

	// Each array element is indexed separately.
	values, err := store.GetByIndex("tags", "go")
	require.NoError(t, err)
	assert.Len(t, values, 2)

	values, err = store.GetByIndex("tags", "db")
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, 1, values[0].(map[string]interface{})["id"])

	// Deleting a record removes its index entries.
	require.NoError(t, store.Delete(1))
	values, err = store.GetByIndex("tags", "db")
	require.NoError(t, err)
	assert.Len(t, values, 0)

	require.NoError(t, tx.Commit())
}

func TestStore_IndexesSortedByName(t *testing.T) {
	engine := NewEngine()
	db := openTestDB(t, engine, "testdb", func(tx *Txn) error {
		store, err := tx.CreateStore("items", domain.NewKeyPath("id"), false)
		if err != nil {
			return err
		}
		if err := store.CreateIndex(IndexSpec{Name: "zeta", KeyPath: domain.NewKeyPath("z")}); err != nil {
			return err
		}
		return store.CreateIndex(IndexSpec{Name: "alpha", KeyPath: domain.NewKeyPath("a")})
	})

	tx, err := db.Begin(ReadOnly)
	require.NoError(t, err)
	defer tx.Abort()

	store, err := tx.Store("items")
	require.NoError(t, err)
	specs, err := store.Indexes()
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "alpha", specs[0].Name)
	assert.Equal(t, "zeta", specs[1].Name)
}

func TestStore_KeyGeneratorClampsHugeKeys(t *testing.T) {
	engine := NewEngine()
	db := openTestDB(t, engine, "testdb", func(tx *Txn) error {
		_, err := tx.CreateStore("events", domain.KeyPath{}, true)
		return err
	})

	tx, err := db.Begin(ReadWrite)
	require.NoError(t, err)
	store, err := tx.Store("events")
	require.NoError(t, err)

	_, err = store.PutWithKey(1e300, map[string]interface{}{"n": 1})
	require.NoError(t, err)

	// The generator pins at the top of its range instead of wrapping to a
	// small value that could collide with existing keys.
	key, err := store.Put(map[string]interface{}{"n": 2})
	require.NoError(t, err)
	assert.Equal(t, float64(math.MaxUint64), key)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
