package iocache

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreated = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newMemoryStore(t *testing.T) *SQLSnapshotStore {
	t.Helper()
	store, err := NewSQLSnapshotStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleFingerprints(paths ...string) schema.FingerprintMap {
	fps := schema.FingerprintMap{}
	for i, p := range paths {
		fps.Add(schema.FileFingerprint{Path: p, Hash: "git:" + p, Size: int64(100 * (i + 1))})
	}
	return fps
}

func TestSQLiteSaveAndGet(t *testing.T) {
	store := newMemoryStore(t)
	key := schema.NewRepositoryKey("Octo", "API")
	payload := json.RawMessage(`{"verdict":"ok"}`)
	fps := sampleFingerprints("go.mod", "main.go", "internal/app.go")

	require.NoError(t, store.Save(key, payload, fps, testCreated))

	snap, err := store.Get(key)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, key, snap.Key)
	assert.JSONEq(t, string(payload), string(snap.Payload))
	assert.Equal(t, fps, snap.Fingerprints)
	assert.True(t, snap.CreatedAt.Equal(testCreated))
	assert.True(t, snap.LastCheckedAt.Equal(testCreated), "a fresh save is also a check")
}

func TestSQLiteGetMissing(t *testing.T) {
	store := newMemoryStore(t)
	snap, err := store.Get(schema.NewRepositoryKey("nobody", "nothing"))
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSQLiteSaveReplacesFingerprints(t *testing.T) {
	store := newMemoryStore(t)
	key := schema.NewRepositoryKey("octo", "api")

	require.NoError(t, store.Save(key, json.RawMessage(`{"v":1}`), sampleFingerprints("a.go", "b.go", "c.go"), testCreated))
	later := testCreated.Add(time.Hour)
	require.NoError(t, store.Save(key, json.RawMessage(`{"v":2}`), sampleFingerprints("a.go"), later))

	snap, err := store.Get(key)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.JSONEq(t, `{"v":2}`, string(snap.Payload))
	assert.Len(t, snap.Fingerprints, 1, "stale fingerprints must not survive a replace")
	assert.Contains(t, snap.Fingerprints, "a.go")
	assert.True(t, snap.CreatedAt.Equal(later))
}

func TestSQLiteSaveEmptyFingerprints(t *testing.T) {
	store := newMemoryStore(t)
	key := schema.NewRepositoryKey("octo", "empty")
	require.NoError(t, store.Save(key, json.RawMessage(`{}`), schema.FingerprintMap{}, testCreated))

	snap, err := store.Get(key)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Empty(t, snap.Fingerprints)
}

func TestSQLiteProfileKey(t *testing.T) {
	store := newMemoryStore(t)
	profile := schema.NewRepositoryKey("octo", "")
	repo := schema.NewRepositoryKey("octo", "api")

	require.NoError(t, store.Save(profile, json.RawMessage(`{"p":true}`), sampleFingerprints("api", "cli"), testCreated))
	require.NoError(t, store.Save(repo, json.RawMessage(`{"r":true}`), sampleFingerprints("go.mod"), testCreated))

	snap, err := store.Get(profile)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.Key.IsProfile())
	assert.Len(t, snap.Fingerprints, 2)
}

func TestSQLiteTouchLastChecked(t *testing.T) {
	store := newMemoryStore(t)
	key := schema.NewRepositoryKey("octo", "api")
	require.NoError(t, store.Save(key, json.RawMessage(`{}`), sampleFingerprints("main.go"), testCreated))

	checked := testCreated.Add(6 * time.Hour)
	require.NoError(t, store.TouchLastChecked(key, checked))

	snap, err := store.Get(key)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.CreatedAt.Equal(testCreated), "touch must not move created_at")
	assert.True(t, snap.LastCheckedAt.Equal(checked))
}

func TestSQLiteDelete(t *testing.T) {
	store := newMemoryStore(t)
	key := schema.NewRepositoryKey("octo", "api")
	require.NoError(t, store.Save(key, json.RawMessage(`{}`), sampleFingerprints("main.go"), testCreated))

	require.NoError(t, store.Delete(key))

	snap, err := store.Get(key)
	require.NoError(t, err)
	assert.Nil(t, snap)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Zero(t, status.TotalFingerprints)
}

func TestSQLiteCleanup(t *testing.T) {
	store := newMemoryStore(t)
	old := schema.NewRepositoryKey("octo", "old")
	recent := schema.NewRepositoryKey("octo", "recent")
	require.NoError(t, store.Save(old, json.RawMessage(`{}`), sampleFingerprints("a.go", "b.go"), testCreated.AddDate(0, 0, -40)))
	require.NoError(t, store.Save(recent, json.RawMessage(`{}`), sampleFingerprints("a.go"), testCreated.AddDate(0, 0, -2)))

	deleted, err := store.Cleanup(testCreated.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	snap, err := store.Get(old)
	require.NoError(t, err)
	assert.Nil(t, snap)

	snap, err = store.Get(recent)
	require.NoError(t, err)
	assert.NotNil(t, snap)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, status.TotalFingerprints, "fingerprints of removed snapshots go too")
}

func TestSQLiteListSnapshots(t *testing.T) {
	store := newMemoryStore(t)
	require.NoError(t, store.Save(schema.NewRepositoryKey("octo", "zeta"), json.RawMessage(`{}`), sampleFingerprints("z.go"), testCreated))
	require.NoError(t, store.Save(schema.NewRepositoryKey("octo", "alpha"), json.RawMessage(`{}`), sampleFingerprints("a.go", "b.go"), testCreated))

	snaps, err := store.ListSnapshots()
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "alpha", snaps[0].Key.Repo)
	assert.Len(t, snaps[0].Fingerprints, 2)
	assert.Equal(t, "zeta", snaps[1].Key.Repo)
	assert.Len(t, snaps[1].Fingerprints, 1)
}

func TestSQLiteGetStatus(t *testing.T) {
	store := newMemoryStore(t)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", status.Backend)
	assert.True(t, status.Connected)
	assert.Zero(t, status.TotalSnapshots)

	require.NoError(t, store.Save(schema.NewRepositoryKey("octo", "a"), json.RawMessage(`{}`), sampleFingerprints("x.go", "y.go"), testCreated.Add(-time.Hour)))
	require.NoError(t, store.Save(schema.NewRepositoryKey("octo", "b"), json.RawMessage(`{}`), sampleFingerprints("x.go"), testCreated))

	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalSnapshots)
	assert.Equal(t, 3, status.TotalFingerprints)
	assert.True(t, status.NewestSnapshot.Equal(testCreated))
	assert.True(t, status.OldestSnapshot.Equal(testCreated.Add(-time.Hour)))
	assert.Equal(t, int64(2), status.TableSizes[snapshotsTable])
	assert.Positive(t, status.SizeBytes)
}

func TestNoneBackendKeepsNothing(t *testing.T) {
	store, err := NewSQLSnapshotStore(schema.NoneBackend, "")
	require.NoError(t, err)
	key := schema.NewRepositoryKey("octo", "api")

	require.NoError(t, store.Save(key, json.RawMessage(`{}`), sampleFingerprints("a.go"), testCreated))
	snap, err := store.Get(key)
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, store.TouchLastChecked(key, testCreated))
	require.NoError(t, store.Delete(key))
	n, err := store.Cleanup(testCreated)
	require.NoError(t, err)
	assert.Zero(t, n)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
	require.NoError(t, store.Close())
}

func TestSQLiteFileStorePersists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "snapshots.db")
	key := schema.NewRepositoryKey("octo", "api")

	store, err := NewSnapshotStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Save(key, json.RawMessage(`{"n":1}`), sampleFingerprints("main.go"), testCreated))
	require.NoError(t, store.Close())

	reopened, err := NewSnapshotStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	snap, err := reopened.Get(key)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Len(t, snap.Fingerprints, 1)
}

func TestClearStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "snapshots.db")
	store, err := NewSnapshotStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Save(schema.NewRepositoryKey("octo", "api"), json.RawMessage(`{}`), nil, testCreated))
	require.NoError(t, store.Close())

	require.NoError(t, ClearStore(schema.SQLiteBackend, dbPath, ""))
	assert.NoFileExists(t, dbPath)

	// Clearing a missing file is fine
	require.NoError(t, ClearStore(schema.SQLiteBackend, dbPath, ""))
	require.NoError(t, ClearStore(schema.NoneBackend, "", ""))
	assert.Error(t, ClearStore(schema.SQLiteBackend, "", ""))
	assert.Error(t, ClearStore("redis", "", ""))
}

func TestNewSnapshotStoreErrors(t *testing.T) {
	_, err := NewSnapshotStore("redis", "")
	assert.Error(t, err)

	_, err = NewSnapshotStore(schema.MongoDBBackend, "not-a-uri")
	assert.Error(t, err)
}

func TestStoreWriteErrorsAreTyped(t *testing.T) {
	store := newMemoryStore(t)
	require.NoError(t, store.Close())

	err := store.Save(schema.NewRepositoryKey("octo", "api"), json.RawMessage(`{}`), nil, testCreated)
	require.Error(t, err)
	assert.ErrorIs(t, err, contract.ErrStoreWrite)
}
