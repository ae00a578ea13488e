package snapshot

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/snapstore-db/snapstore/pkg/domain"
	"github.com/snapstore-db/snapstore/pkg/storage"
)

// State is the importer's position in the import lifecycle.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateSchemaReady
	StateRestoring
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateSchemaReady:
		return "schema-ready"
	case StateRestoring:
		return "restoring"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Options controls how a snapshot document is imported.
type Options struct {
	// ClearExisting deletes the existing on-disk database entirely before
	// the import when Merge is false. This is DESTRUCTIVE and IRREVERSIBLE:
	// the delete and the subsequent recreate are not atomic, and a crash
	// between them leaves no database at all. Callers that cannot tolerate
	// that window should import with Merge instead.
	ClearExisting bool

	// Merge preserves existing records; snapshot records are upserted by
	// key. Without it each store is replaced by the snapshot's records.
	Merge bool
}

// DefaultOptions returns the default import options: clear the existing
// database, no merge.
func DefaultOptions() Options {
	return Options{ClearExisting: true, Merge: false}
}

// Result reports the outcome of an import.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Importer replays a snapshot document into a database, walking the states
// closed -> connecting -> schema-ready -> restoring -> done, with error as
// the terminal state of any failure. There is no automatic retry.
type Importer struct {
	engine *storage.Engine
	logger *zap.SugaredLogger
	state  State
	conn   *storage.Database
}

// NewImporter creates an importer for an engine. conn is the current live
// connection to the target database, if any; the importer closes it before
// doing anything else and owns the connection it opens in its place.
func NewImporter(engine *storage.Engine, conn *storage.Database, logger *zap.SugaredLogger) *Importer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Importer{
		engine: engine,
		logger: logger,
		state:  StateClosed,
		conn:   conn,
	}
}

// State returns the importer's current state.
func (imp *Importer) State() State { return imp.state }

// Conn returns the live connection produced by a completed import. The
// caller takes ownership and must close it.
func (imp *Importer) Conn() *storage.Database { return imp.conn }

// Import replays a snapshot document. The document is validated before any
// structural or data mutation occurs; a document without a stores field, or
// with a store entry carrying no body, fails with a FormatError. Every subsequent phase is fail-fast: the first
// error moves the importer to its error state and is returned to the caller.
func (imp *Importer) Import(doc *Document, opts Options) (*Result, error) {
	if doc == nil {
		return nil, imp.fail(&domain.FormatError{Reason: "document is nil"})
	}
	if doc.Stores == nil {
		return nil, imp.fail(&domain.FormatError{Reason: "missing stores field"})
	}
	if doc.DBName == "" {
		return nil, imp.fail(&domain.FormatError{Reason: "missing dbName field"})
	}
	for name, snap := range doc.Stores {
		if snap == nil {
			return nil, imp.fail(&domain.FormatError{Reason: fmt.Sprintf("store %q has no snapshot body", name)})
		}
	}

	// Close any existing live connection before touching the database.
	if imp.conn != nil {
		if err := imp.conn.Close(); err != nil {
			return nil, imp.fail(err)
		}
		imp.conn = nil
	}
	imp.state = StateClosed

	if opts.ClearExisting && !opts.Merge {
		if err := imp.engine.DeleteDatabase(doc.DBName); err != nil {
			var blocked *domain.BlockedDeleteError
			if !errors.As(err, &blocked) {
				return nil, imp.fail(err)
			}
			// Blocked deletes are reported, not fatal; the old data stays
			// and each store still gets replaced during restore.
			imp.logger.Warnw("database delete blocked by an open connection, continuing without it",
				"database", doc.DBName)
		}
	}

	imp.state = StateConnecting
	if err := imp.connect(doc); err != nil {
		return nil, imp.fail(err)
	}
	imp.state = StateSchemaReady

	imp.state = StateRestoring
	names := make([]string, 0, len(doc.Stores))
	for name := range doc.Stores {
		names = append(names, name)
	}
	sort.Strings(names)

	restored := 0
	for _, name := range names {
		if err := imp.restoreOne(name, doc.Stores[name], opts.Merge); err != nil {
			return nil, imp.fail(err)
		}
		restored++
	}

	imp.state = StateDone
	msg := fmt.Sprintf("imported %d stores into database %q", restored, doc.DBName)
	imp.logger.Infow("import complete", "database", doc.DBName, "stores", restored, "merge", opts.Merge)
	return &Result{Success: true, Message: msg}, nil
}

// connect opens or creates the target database and replays the snapshot's
// schema during the version-change phase. If the database already exists at
// a sufficient version but lacks stores from the document, the connection is
// reopened one version higher to enter the structural-change phase again.
func (imp *Importer) connect(doc *Document) error {
	upgrade := func(tx *storage.Txn, oldVersion, newVersion uint64) error {
		return ReplaySchema(tx, doc)
	}

	conn, err := imp.engine.Open(doc.DBName, doc.Version, upgrade)
	if errors.Is(err, storage.ErrStaleVersion) {
		// The stored version is already past the snapshot's; open at the
		// stored version instead.
		conn, err = imp.engine.Open(doc.DBName, 0, nil)
	}
	if err != nil {
		return err
	}

	if missing := missingStores(conn, doc); len(missing) > 0 {
		version := conn.Version() + 1
		if err := conn.Close(); err != nil {
			return err
		}
		conn, err = imp.engine.Open(doc.DBName, version, upgrade)
		if err != nil {
			return err
		}
	}

	imp.conn = conn
	return nil
}

// restoreOne replays a single store in its own read-write transaction. The
// transaction commits only if every record was written, so an aborted
// restore never leaves a silently truncated store.
func (imp *Importer) restoreOne(name string, snap *StoreSnapshot, merge bool) error {
	tx, err := imp.conn.Begin(storage.ReadWrite)
	if err != nil {
		return &domain.WriteError{Store: name, Err: err}
	}

	if err := restoreStore(tx, name, snap, merge); err != nil {
		tx.Abort()
		return err
	}

	if err := tx.Commit(); err != nil {
		return &domain.WriteError{Store: name, Err: err}
	}

	imp.logger.Debugw("restored store", "store", name, "records", snap.RecordCount, "merge", merge)
	return nil
}

// fail transitions to the terminal error state, closing any connection the
// importer opened itself. A connection handed in by the caller (still held
// when validation fails) is left alone.
func (imp *Importer) fail(err error) error {
	opened := imp.state != StateClosed
	imp.state = StateError
	if opened && imp.conn != nil {
		if closeErr := imp.conn.Close(); closeErr != nil {
			imp.logger.Warnw("failed to close connection after import error", "error", closeErr)
		}
		imp.conn = nil
	}
	imp.logger.Errorw("import failed", "error", err)
	return err
}
