package algo

import (
	"testing"

	"github.com/huangsam/reposcout/schema"
	"github.com/stretchr/testify/assert"
)

func blob(path string, size int64) schema.TreeEntry {
	return schema.TreeEntry{Path: path, Type: schema.TreeBlob, Size: size}
}

func TestDeriveSignals(t *testing.T) {
	tree := []schema.TreeEntry{
		{Path: "cmd", Type: schema.TreeDir},
		blob("README.md", 400),
		blob("go.mod", 100),
		blob("Makefile", 50),
		blob("cmd/app/main.go", 1000),
		blob("internal/store/store.go", 3000),
		blob("internal/store/store_test.go", 2000),
		blob(".github/workflows/ci.yml", 300),
		blob("deploy/Dockerfile", 200),
		blob("deploy/k8s/deployment.yaml", 500),
		blob("infra/main.tf", 600),
		blob("docs/guide.md", 800),
	}

	s := DeriveSignals(tree)
	assert.True(t, s.HasReadme)
	assert.True(t, s.HasManifest)
	assert.True(t, s.HasMakefile)
	assert.True(t, s.HasTests)
	assert.True(t, s.HasCI)
	assert.True(t, s.HasContainer)
	assert.True(t, s.HasOrchestration)
	assert.True(t, s.HasInfraAsCode)
	assert.Equal(t, 11, s.FileCount)
	assert.Equal(t, 3, s.SourceFileCount)
	assert.Equal(t, int64(6000), s.SourceBytes)
	assert.Equal(t, int64(8950), s.TotalBytes)
	assert.Equal(t, []string{"cmd", "internal"}, s.StructureDirs)
	assert.True(t, s.HasBuildSignal())
}

func TestDeriveSignalsEmptyRepository(t *testing.T) {
	s := DeriveSignals(nil)
	assert.False(t, s.HasBuildSignal())
	assert.False(t, s.HasReadme)
	assert.Empty(t, s.StructureDirs)
	assert.Zero(t, s.FileCount)
}

func TestDeriveSignalsNestedReadmeIgnored(t *testing.T) {
	s := DeriveSignals([]schema.TreeEntry{blob("docs/README.md", 10), blob("main.py", 10)})
	assert.False(t, s.HasReadme)
	assert.Equal(t, 1, s.SourceFileCount)
}

func TestCIPatternsAnchoredAtRoot(t *testing.T) {
	s := DeriveSignals([]schema.TreeEntry{blob("vendor/lib/.travis.yml", 10)})
	assert.False(t, s.HasCI)
}

func TestAnalyzeReadme(t *testing.T) {
	stats := AnalyzeReadme([]byte("# Title\n\nSome text.\n\n```go\nfmt.Println()\n```\n"))
	assert.True(t, stats.HasSection)
	assert.True(t, stats.HasCode)
	assert.Equal(t, 45, stats.Length)

	plain := AnalyzeReadme([]byte("#hashtag without space"))
	assert.False(t, plain.HasSection)
	assert.False(t, plain.HasCode)
}
