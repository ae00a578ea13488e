package snapshot

import (
	"github.com/snapstore-db/snapstore/pkg/domain"
	"github.com/snapstore-db/snapstore/pkg/storage"
)

// restoreStore replays one store's snapshot records into the target store
// inside the given transaction. With merge false the store is cleared first
// (replace semantics); with merge true existing records are kept and
// snapshot records upsert over them. Both paths use the same upsert.
//
// For a store with a key path the record's value alone determines its key;
// the exported key is deliberately ignored. If the key-path property was
// mutated or stripped from the value before export, the restored key
// diverges from the original. That is a documented fidelity caveat of the
// snapshot format, not something this function detects.
//
// Any write failure aborts the whole store's restore; the caller must abort
// the transaction so no partially written store becomes visible.
func restoreStore(tx *storage.Txn, name string, snap *StoreSnapshot, merge bool) error {
	store, err := tx.Store(name)
	if err != nil {
		return &domain.WriteError{Store: name, Err: err}
	}

	if !merge {
		if err := store.Clear(); err != nil {
			return &domain.WriteError{Store: name, Err: err}
		}
	}

	inline := !store.KeyPath().IsEmpty()
	for _, rec := range snap.Data {
		if inline {
			_, err = store.Put(rec.Value)
		} else {
			_, err = store.PutWithKey(rec.Key, rec.Value)
		}
		if err != nil {
			return &domain.WriteError{Store: name, Err: err}
		}
	}

	return nil
}
