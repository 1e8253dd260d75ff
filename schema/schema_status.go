package schema

import "time"

// StoreStatus represents the status of the snapshot store.
type StoreStatus struct {
	Backend           string           `json:"backend"`
	Connected         bool             `json:"connected"`
	TotalSnapshots    int              `json:"total_snapshots"`
	TotalFingerprints int              `json:"total_fingerprints"`
	NewestSnapshot    time.Time        `json:"newest_snapshot"`
	OldestSnapshot    time.Time        `json:"oldest_snapshot"`
	TableSizes        map[string]int64 `json:"table_sizes,omitempty"`
	SizeBytes         int64            `json:"size_bytes"`
}

// SnapshotRecord is a flattened snapshot row used by exports.
type SnapshotRecord struct {
	SnapshotKey   string
	Owner         string
	Repo          string
	Payload       string
	FileCount     int32
	CreatedAt     time.Time
	LastCheckedAt time.Time
}

// FingerprintRecord is a flattened fingerprint row used by exports.
type FingerprintRecord struct {
	SnapshotKey string
	Path        string
	Hash        string
	Size        int64
}
