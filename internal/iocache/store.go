// Package iocache persists analysis snapshots and their fingerprints.
package iocache

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/schema"
)

// NewSnapshotStore opens the store for backend. SQL backends are migrated on open.
func NewSnapshotStore(backend schema.DatabaseBackend, connStr string) (contract.SnapshotStore, error) {
	switch backend {
	case schema.MongoDBBackend:
		return NewMongoSnapshotStore(connStr)
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend, schema.NoneBackend:
		return NewSQLSnapshotStore(backend, connStr)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", backend)
	}
}

// ClearStore removes every stored snapshot for the backend.
// For SQLite, it deletes the database file.
// For MySQL and PostgreSQL, it deletes all rows and leaves the migrated schema in place.
// For MongoDB, it drops both collections.
// For NoneBackend, it does nothing.
func ClearStore(backend schema.DatabaseBackend, dbFilePath, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		if dbFilePath == "" {
			return fmt.Errorf("dbFilePath cannot be empty for SQLite backend")
		}
		// Remove the file; ignore if it doesn't exist
		if err := os.Remove(dbFilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove SQLite database file %s: %w", dbFilePath, err)
		}
		return nil

	case schema.MySQLBackend, schema.PostgreSQLBackend:
		return clearSQLTables(backend, connStr, fingerprintsTable, snapshotsTable)

	case schema.MongoDBBackend:
		store, err := NewMongoSnapshotStore(connStr)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		return store.Clear()

	case schema.NoneBackend:
		return nil

	default:
		return fmt.Errorf("unsupported store backend for clearing: %s", backend)
	}
}

// clearSQLTables connects to the SQL database and deletes all rows of each table in order.
func clearSQLTables(backend schema.DatabaseBackend, connStr string, tables ...string) error {
	db, err := openSQL(backend, connStr)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping %s database: %w", backend, err)
	}

	for _, table := range tables {
		if err := deleteAllRows(db, backend, table); err != nil {
			return err
		}
	}
	return nil
}

// deleteAllRows empties one table.
func deleteAllRows(db *sql.DB, backend schema.DatabaseBackend, table string) error {
	if err := validateTableName(table); err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s", quoteTableName(table, backend))
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to clear table %s: %w", table, err)
	}
	return nil
}
