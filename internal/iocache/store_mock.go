package iocache

import (
	"encoding/json"
	"time"

	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/schema"
	"github.com/stretchr/testify/mock"
)

// MockSnapshotStore is a mock implementation of contract.SnapshotStore.
type MockSnapshotStore struct {
	mock.Mock
}

var _ contract.SnapshotStore = &MockSnapshotStore{} // Compile-time check

// Get mocks the Get method.
func (m *MockSnapshotStore) Get(key schema.RepositoryKey) (*schema.AnalysisSnapshot, error) {
	args := m.Called(key)
	snap, _ := args.Get(0).(*schema.AnalysisSnapshot)
	return snap, args.Error(1)
}

// Save mocks the Save method.
func (m *MockSnapshotStore) Save(key schema.RepositoryKey, payload json.RawMessage, fingerprints schema.FingerprintMap, createdAt time.Time) error {
	args := m.Called(key, payload, fingerprints, createdAt)
	return args.Error(0)
}

// TouchLastChecked mocks the TouchLastChecked method.
func (m *MockSnapshotStore) TouchLastChecked(key schema.RepositoryKey, checkedAt time.Time) error {
	args := m.Called(key, checkedAt)
	return args.Error(0)
}

// Delete mocks the Delete method.
func (m *MockSnapshotStore) Delete(key schema.RepositoryKey) error {
	args := m.Called(key)
	return args.Error(0)
}

// Cleanup mocks the Cleanup method.
func (m *MockSnapshotStore) Cleanup(cutoff time.Time) (int64, error) {
	args := m.Called(cutoff)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// ListSnapshots mocks the ListSnapshots method.
func (m *MockSnapshotStore) ListSnapshots() ([]schema.AnalysisSnapshot, error) {
	args := m.Called()
	snaps, _ := args.Get(0).([]schema.AnalysisSnapshot)
	return snaps, args.Error(1)
}

// GetStatus mocks the GetStatus method.
func (m *MockSnapshotStore) GetStatus() (schema.StoreStatus, error) {
	args := m.Called()
	status, _ := args.Get(0).(schema.StoreStatus)
	return status, args.Error(1)
}

// Close mocks the Close method.
func (m *MockSnapshotStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
