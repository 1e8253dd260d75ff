package iocache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/schema"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Table names for snapshot storage.
const (
	snapshotsTable    = "repo_snapshots"
	fingerprintsTable = "repo_fingerprints"
)

// SQLSnapshotStore stores snapshots in a relational database.
type SQLSnapshotStore struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	connStr string
}

var _ contract.SnapshotStore = &SQLSnapshotStore{} // Compile-time check

// openSQL opens a handle for the backend without verifying the connection.
func openSQL(backend schema.DatabaseBackend, connStr string) (*sql.DB, error) {
	switch backend {
	case schema.SQLiteBackend:
		dbPath := connStr
		if dbPath == "" {
			dbPath = contract.GetStoreDBFilePath()
		}
		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database at %q: %w. Check that the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)
		return db, nil

	case schema.MySQLBackend:
		// connStr should be:
		// user:password@tcp(host:port)/dbname
		db, err := sql.Open("mysql", connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open MySQL database: %w. Check connection format: user:password@tcp(host:port)/dbname", err)
		}
		return db, nil

	case schema.PostgreSQLBackend:
		// connStr should be:
		// host=localhost port=5432 user=postgres password=mysecretpassword dbname=postgres
		db, err := sql.Open("pgx", connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w. Check connection format: host=localhost port=5432 user=postgres dbname=mydb", err)
		}
		return db, nil

	default:
		return nil, fmt.Errorf("unsupported SQL backend: %s. Must be sqlite, mysql or postgresql", backend)
	}
}

// NewSQLSnapshotStore opens a SQL-backed store and brings its schema up to date.
// The none backend yields a store that keeps nothing.
func NewSQLSnapshotStore(backend schema.DatabaseBackend, connStr string) (*SQLSnapshotStore, error) {
	if backend == schema.NoneBackend {
		return &SQLSnapshotStore{backend: backend}, nil
	}

	db, err := openSQL(backend, connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		var connDetail string
		switch backend {
		case schema.MySQLBackend:
			connDetail = "Check that MySQL is running and the connection string is correct. Ensure user/password are valid."
		case schema.PostgreSQLBackend:
			connDetail = "Check that PostgreSQL is running and the connection string is correct. Ensure user/password are valid."
		default:
			connDetail = "Verify the database file is accessible."
		}
		return nil, fmt.Errorf("failed to connect to %s database: %w. %s", backend, err, connDetail)
	}

	if err := autoMigrate(db, backend, connStr); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLSnapshotStore{db: db, backend: backend, connStr: connStr}, nil
}

// autoMigrate brings the schema to the latest version. SQLite reuses the store handle
// so in-memory databases see their tables; networked backends use a short-lived handle.
func autoMigrate(db *sql.DB, backend schema.DatabaseBackend, connStr string) error {
	if backend == schema.SQLiteBackend {
		if _, err := migrateDB(db, backend, -1); err != nil {
			return fmt.Errorf("failed to create snapshot tables: %w", err)
		}
		return nil
	}
	if _, err := MigrateSnapshots(backend, connStr, -1); err != nil {
		return fmt.Errorf("failed to create snapshot tables: %w", err)
	}
	return nil
}

// disabled reports whether the store keeps nothing.
func (s *SQLSnapshotStore) disabled() bool {
	return s.backend == schema.NoneBackend || s.db == nil
}

// beginRead starts a transaction that sees one consistent snapshot and fingerprint set.
func (s *SQLSnapshotStore) beginRead() (*sql.Tx, error) {
	if s.backend == schema.SQLiteBackend {
		return s.db.Begin()
	}
	return s.db.BeginTx(context.Background(), &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
}

// Get returns the snapshot for key, or nil when none is stored.
func (s *SQLSnapshotStore) Get(key schema.RepositoryKey) (*schema.AnalysisSnapshot, error) {
	if s.disabled() {
		return nil, nil
	}

	tx, err := s.beginRead()
	if err != nil {
		return nil, fmt.Errorf("failed to begin read for %s: %w", key, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`SELECT payload, file_count, created_at, last_checked_at FROM %s WHERE snapshot_key = %s`,
		quoteTableName(snapshotsTable, s.backend), placeholder(s.backend, 1))

	var (
		payload            string
		fileCount          int
		createdAt, checked int64
	)
	if err := tx.QueryRow(query, key.String()).Scan(&payload, &fileCount, &createdAt, &checked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}

	fps, err := s.readFingerprints(tx, key.String())
	if err != nil {
		return nil, err
	}
	if len(fps) != fileCount {
		return nil, fmt.Errorf("snapshot %s is inconsistent: expected %d fingerprints, found %d", key, fileCount, len(fps))
	}

	return &schema.AnalysisSnapshot{
		Key:           key,
		Payload:       json.RawMessage(payload),
		Fingerprints:  fps,
		CreatedAt:     fromUnixNano(createdAt),
		LastCheckedAt: fromUnixNano(checked),
	}, nil
}

// readFingerprints loads the fingerprint map of one snapshot.
func (s *SQLSnapshotStore) readFingerprints(tx *sql.Tx, snapshotKey string) (schema.FingerprintMap, error) {
	query := fmt.Sprintf(`SELECT path, hash, size FROM %s WHERE snapshot_key = %s`,
		quoteTableName(fingerprintsTable, s.backend), placeholder(s.backend, 1))
	rows, err := tx.Query(query, snapshotKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints for %s: %w", snapshotKey, err)
	}
	defer func() { _ = rows.Close() }()

	fps := schema.FingerprintMap{}
	for rows.Next() {
		var fp schema.FileFingerprint
		if err := rows.Scan(&fp.Path, &fp.Hash, &fp.Size); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		fps.Add(fp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fingerprints: %w", err)
	}
	return fps, nil
}

// Save replaces the payload and fingerprints for key in one transaction.
func (s *SQLSnapshotStore) Save(key schema.RepositoryKey, payload json.RawMessage, fingerprints schema.FingerprintMap, createdAt time.Time) error {
	if s.disabled() {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction for %s: %v", contract.ErrStoreWrite, key, err)
	}
	defer func() { _ = tx.Rollback() }()

	ts := createdAt.UnixNano()
	if _, err := tx.Exec(s.upsertSnapshotQuery(), key.String(), key.Owner, key.Repo, string(payload), len(fingerprints), ts, ts); err != nil {
		return fmt.Errorf("%w: failed to upsert snapshot %s: %v", contract.ErrStoreWrite, key, err)
	}

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE snapshot_key = %s`,
		quoteTableName(fingerprintsTable, s.backend), placeholder(s.backend, 1))
	if _, err := tx.Exec(deleteQuery, key.String()); err != nil {
		return fmt.Errorf("%w: failed to clear fingerprints for %s: %v", contract.ErrStoreWrite, key, err)
	}

	if len(fingerprints) > 0 {
		insertQuery := fmt.Sprintf(`INSERT INTO %s (snapshot_key, path, hash, size) VALUES (%s, %s, %s, %s)`,
			quoteTableName(fingerprintsTable, s.backend),
			placeholder(s.backend, 1), placeholder(s.backend, 2), placeholder(s.backend, 3), placeholder(s.backend, 4))
		stmt, err := tx.Prepare(insertQuery)
		if err != nil {
			return fmt.Errorf("%w: failed to prepare fingerprint insert: %v", contract.ErrStoreWrite, err)
		}
		defer func() { _ = stmt.Close() }()

		for _, path := range sortedPaths(fingerprints) {
			fp := fingerprints[path]
			if _, err := stmt.Exec(key.String(), path, fp.Hash, fp.Size); err != nil {
				return fmt.Errorf("%w: failed to insert fingerprint %s for %s: %v", contract.ErrStoreWrite, path, key, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit snapshot %s: %v", contract.ErrStoreWrite, key, err)
	}
	return nil
}

// upsertSnapshotQuery returns the backend-specific upsert for the snapshots table.
func (s *SQLSnapshotStore) upsertSnapshotQuery() string {
	table := quoteTableName(snapshotsTable, s.backend)
	switch s.backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (snapshot_key, owner, repo, payload, file_count, created_at, last_checked_at)
			VALUES (?, ?, ?, ?, ?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE payload = new.payload, file_count = new.file_count,
			created_at = new.created_at, last_checked_at = new.last_checked_at`, table)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (snapshot_key, owner, repo, payload, file_count, created_at, last_checked_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (snapshot_key) DO UPDATE SET payload = EXCLUDED.payload, file_count = EXCLUDED.file_count,
			created_at = EXCLUDED.created_at, last_checked_at = EXCLUDED.last_checked_at`, table)

	default: // SQLite
		return fmt.Sprintf(`INSERT OR REPLACE INTO %s (snapshot_key, owner, repo, payload, file_count, created_at, last_checked_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`, table)
	}
}

// TouchLastChecked updates only the last-checked timestamp.
func (s *SQLSnapshotStore) TouchLastChecked(key schema.RepositoryKey, checkedAt time.Time) error {
	if s.disabled() {
		return nil
	}
	query := fmt.Sprintf(`UPDATE %s SET last_checked_at = %s WHERE snapshot_key = %s`,
		quoteTableName(snapshotsTable, s.backend), placeholder(s.backend, 1), placeholder(s.backend, 2))
	if _, err := s.db.Exec(query, checkedAt.UnixNano(), key.String()); err != nil {
		return fmt.Errorf("%w: failed to touch snapshot %s: %v", contract.ErrStoreWrite, key, err)
	}
	return nil
}

// Delete removes the snapshot and its fingerprints.
func (s *SQLSnapshotStore) Delete(key schema.RepositoryKey) error {
	if s.disabled() {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: failed to begin delete for %s: %v", contract.ErrStoreWrite, key, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{fingerprintsTable, snapshotsTable} {
		query := fmt.Sprintf(`DELETE FROM %s WHERE snapshot_key = %s`, quoteTableName(table, s.backend), placeholder(s.backend, 1))
		if _, err := tx.Exec(query, key.String()); err != nil {
			return fmt.Errorf("%w: failed to delete from %s for %s: %v", contract.ErrStoreWrite, table, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit delete for %s: %v", contract.ErrStoreWrite, key, err)
	}
	return nil
}

// Cleanup deletes snapshots created before cutoff, with their fingerprints.
func (s *SQLSnapshotStore) Cleanup(cutoff time.Time) (int64, error) {
	if s.disabled() {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin cleanup: %v", contract.ErrStoreWrite, err)
	}
	defer func() { _ = tx.Rollback() }()

	snapshots := quoteTableName(snapshotsTable, s.backend)
	fingerprints := quoteTableName(fingerprintsTable, s.backend)
	ts := cutoff.UnixNano()

	fpQuery := fmt.Sprintf(`DELETE FROM %s WHERE snapshot_key IN (SELECT snapshot_key FROM %s WHERE created_at < %s)`,
		fingerprints, snapshots, placeholder(s.backend, 1))
	if _, err := tx.Exec(fpQuery, ts); err != nil {
		return 0, fmt.Errorf("%w: failed to delete old fingerprints: %v", contract.ErrStoreWrite, err)
	}

	snapQuery := fmt.Sprintf(`DELETE FROM %s WHERE created_at < %s`, snapshots, placeholder(s.backend, 1))
	result, err := tx.Exec(snapQuery, ts)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to delete old snapshots: %v", contract.ErrStoreWrite, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: failed to commit cleanup: %v", contract.ErrStoreWrite, err)
	}
	return deleted, nil
}

// ListSnapshots returns all stored snapshots with their fingerprints, ordered by key.
func (s *SQLSnapshotStore) ListSnapshots() ([]schema.AnalysisSnapshot, error) {
	if s.disabled() {
		return nil, nil
	}

	tx, err := s.beginRead()
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot listing: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`SELECT snapshot_key, owner, repo, payload, created_at, last_checked_at FROM %s ORDER BY snapshot_key`,
		quoteTableName(snapshotsTable, s.backend))
	rows, err := tx.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}

	var (
		results []schema.AnalysisSnapshot
		index   = map[string]int{}
	)
	for rows.Next() {
		var (
			snapshotKey, owner, repo, payload string
			createdAt, checked               int64
		)
		if err := rows.Scan(&snapshotKey, &owner, &repo, &payload, &createdAt, &checked); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		index[snapshotKey] = len(results)
		results = append(results, schema.AnalysisSnapshot{
			Key:           schema.RepositoryKey{Owner: owner, Repo: repo},
			Payload:       json.RawMessage(payload),
			Fingerprints:  schema.FingerprintMap{},
			CreatedAt:     fromUnixNano(createdAt),
			LastCheckedAt: fromUnixNano(checked),
		})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	_ = rows.Close()

	fpQuery := fmt.Sprintf(`SELECT snapshot_key, path, hash, size FROM %s`, quoteTableName(fingerprintsTable, s.backend))
	fpRows, err := tx.Query(fpQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer func() { _ = fpRows.Close() }()

	for fpRows.Next() {
		var (
			snapshotKey string
			fp          schema.FileFingerprint
		)
		if err := fpRows.Scan(&snapshotKey, &fp.Path, &fp.Hash, &fp.Size); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		if i, ok := index[snapshotKey]; ok {
			results[i].Fingerprints.Add(fp)
		}
	}
	if err := fpRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fingerprints: %w", err)
	}
	return results, nil
}

// GetStatus returns status information about the snapshot store.
func (s *SQLSnapshotStore) GetStatus() (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:    string(s.backend),
		Connected:  s.db != nil,
		TableSizes: make(map[string]int64),
	}
	if s.disabled() {
		return status, nil
	}

	snapshots := quoteTableName(snapshotsTable, s.backend)
	fingerprints := quoteTableName(fingerprintsTable, s.backend)

	if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", snapshots)).Scan(&status.TotalSnapshots); err != nil {
		return status, fmt.Errorf("failed to get total snapshots: %w", err)
	}
	if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", fingerprints)).Scan(&status.TotalFingerprints); err != nil {
		return status, fmt.Errorf("failed to get total fingerprints: %w", err)
	}
	status.TableSizes[snapshotsTable] = int64(status.TotalSnapshots)
	status.TableSizes[fingerprintsTable] = int64(status.TotalFingerprints)

	if status.TotalSnapshots > 0 {
		var newest, oldest int64
		query := fmt.Sprintf("SELECT MAX(created_at), MIN(created_at) FROM %s", snapshots)
		if err := s.db.QueryRow(query).Scan(&newest, &oldest); err != nil {
			return status, fmt.Errorf("failed to get snapshot age range: %w", err)
		}
		status.NewestSnapshot = fromUnixNano(newest)
		status.OldestSnapshot = fromUnixNano(oldest)
	}

	status.SizeBytes = s.estimateSizeBytes(status.TotalSnapshots + status.TotalFingerprints)
	return status, nil
}

// estimateSizeBytes asks the backend for the on-disk size, falling back to a rough estimate.
func (s *SQLSnapshotStore) estimateSizeBytes(rows int) int64 {
	fallback := int64(rows) * 200
	var size int64

	switch s.backend {
	case schema.SQLiteBackend:
		if err := s.db.QueryRow("SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()").Scan(&size); err != nil {
			return fallback
		}
	case schema.MySQLBackend:
		cfg, err := mysql.ParseDSN(s.connStr)
		if err != nil || cfg.DBName == "" {
			return fallback
		}
		query := "SELECT COALESCE(SUM(data_length + index_length), 0) FROM information_schema.tables WHERE table_schema = ? AND table_name IN (?, ?)"
		if err := s.db.QueryRow(query, cfg.DBName, snapshotsTable, fingerprintsTable).Scan(&size); err != nil {
			return fallback
		}
	case schema.PostgreSQLBackend:
		query := "SELECT pg_total_relation_size($1::regclass) + pg_total_relation_size($2::regclass)"
		if err := s.db.QueryRow(query, snapshotsTable, fingerprintsTable).Scan(&size); err != nil {
			return fallback
		}
	default:
		return fallback
	}
	return size
}

// Close closes the underlying connection.
func (s *SQLSnapshotStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// sortedPaths returns the paths of a fingerprint map in lexical order.
func sortedPaths(fps schema.FingerprintMap) []string {
	paths := make([]string, 0, len(fps))
	for p := range fps {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
