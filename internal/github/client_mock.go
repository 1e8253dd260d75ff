package github

import (
	"context"

	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/schema"
	"github.com/stretchr/testify/mock"
)

// MockSourceClient is a mock implementation of SourceClient for testing.
type MockSourceClient struct {
	mock.Mock
}

var _ contract.SourceClient = &MockSourceClient{} // Compile-time check

// GetRepositoryMetadata implements the SourceClient interface.
func (m *MockSourceClient) GetRepositoryMetadata(ctx context.Context, owner, repo string) (*schema.RepositoryMetadata, error) {
	args := m.Called(ctx, owner, repo)
	meta, _ := args.Get(0).(*schema.RepositoryMetadata)
	return meta, args.Error(1)
}

// ListUserRepositories implements the SourceClient interface.
func (m *MockSourceClient) ListUserRepositories(ctx context.Context, owner string) ([]schema.RepositoryMetadata, error) {
	args := m.Called(ctx, owner)
	repos, _ := args.Get(0).([]schema.RepositoryMetadata)
	return repos, args.Error(1)
}

// GetTree implements the SourceClient interface.
func (m *MockSourceClient) GetTree(ctx context.Context, owner, repo string) ([]schema.TreeEntry, error) {
	args := m.Called(ctx, owner, repo)
	tree, _ := args.Get(0).([]schema.TreeEntry)
	return tree, args.Error(1)
}

// GetFileContent implements the SourceClient interface.
func (m *MockSourceClient) GetFileContent(ctx context.Context, owner, repo, path string) ([]byte, error) {
	args := m.Called(ctx, owner, repo, path)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// GetReadme implements the SourceClient interface.
func (m *MockSourceClient) GetReadme(ctx context.Context, owner, repo string) ([]byte, error) {
	args := m.Called(ctx, owner, repo)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// GetLanguageBytes implements the SourceClient interface.
func (m *MockSourceClient) GetLanguageBytes(ctx context.Context, owner, repo string) (map[string]int64, error) {
	args := m.Called(ctx, owner, repo)
	langs, _ := args.Get(0).(map[string]int64)
	return langs, args.Error(1)
}

// CountReleases implements the SourceClient interface.
func (m *MockSourceClient) CountReleases(ctx context.Context, owner, repo string) (int, error) {
	args := m.Called(ctx, owner, repo)
	return args.Int(0), args.Error(1)
}

// ListRecentCommits implements the SourceClient interface.
func (m *MockSourceClient) ListRecentCommits(ctx context.Context, owner, repo string, limit int) ([]schema.CommitInfo, error) {
	args := m.Called(ctx, owner, repo, limit)
	commits, _ := args.Get(0).([]schema.CommitInfo)
	return commits, args.Error(1)
}

// CountOpenPulls implements the SourceClient interface.
func (m *MockSourceClient) CountOpenPulls(ctx context.Context, owner, repo string) (int, error) {
	args := m.Called(ctx, owner, repo)
	return args.Int(0), args.Error(1)
}
