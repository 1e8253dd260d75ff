// Package change diffs fingerprint maps and classifies how significant the difference is.
package change

import (
	"path"
	"sort"
	"strings"

	"github.com/huangsam/reposcout/schema"
)

// Impact ratio thresholds.
const (
	HighRatio   = 0.25
	MediumRatio = 0.05
)

// criticalNames are exact filenames whose change always matters.
var criticalNames = map[string]struct{}{
	// dependency manifests
	"package.json":      {},
	"package-lock.json": {},
	"yarn.lock":         {},
	"pnpm-lock.yaml":    {},
	"requirements.txt":  {},
	"pyproject.toml":    {},
	"setup.py":          {},
	"pipfile":           {},
	"pipfile.lock":      {},
	"go.mod":            {},
	"go.sum":            {},
	"cargo.toml":        {},
	"cargo.lock":        {},
	"pom.xml":           {},
	"build.gradle":      {},
	"build.gradle.kts":  {},
	"gemfile":           {},
	"gemfile.lock":      {},
	"composer.json":     {},
	// container build files
	"dockerfile":          {},
	"containerfile":       {},
	"docker-compose.yml":  {},
	"docker-compose.yaml": {},
	"compose.yml":         {},
	"compose.yaml":        {},
	// ci configs
	".gitlab-ci.yml":      {},
	".travis.yml":         {},
	"jenkinsfile":         {},
	"azure-pipelines.yml": {},
}

// criticalDirs are directories whose YAML files are CI definitions.
var criticalDirs = []string{".github/workflows/", ".circleci/"}

// IsCriticalFile reports whether p is a dependency manifest, a CI config or a container build file.
func IsCriticalFile(p string) bool {
	lower := strings.ToLower(strings.TrimPrefix(p, "./"))
	base := path.Base(lower)
	if _, ok := criticalNames[base]; ok {
		return true
	}
	if strings.HasPrefix(base, "dockerfile") || strings.HasSuffix(base, ".dockerfile") {
		return true
	}
	for _, dir := range criticalDirs {
		if strings.HasPrefix(lower, dir) && (strings.HasSuffix(base, ".yml") || strings.HasSuffix(base, ".yaml")) {
			return true
		}
	}
	return false
}

// Diff classifies every path of before and after. Unchanged paths are omitted and each
// returned slice is sorted lexicographically.
func Diff(before, after schema.FingerprintMap) schema.ChangeSet {
	cs := schema.ChangeSet{
		Added:    []string{},
		Modified: []string{},
		Removed:  []string{},
	}

	for p, fp := range after {
		prev, ok := before[p]
		switch {
		case !ok:
			cs.Added = append(cs.Added, p)
		case prev.Hash != fp.Hash:
			cs.Modified = append(cs.Modified, p)
		}
	}
	for p := range before {
		if _, ok := after[p]; !ok {
			cs.Removed = append(cs.Removed, p)
		}
	}

	sort.Strings(cs.Added)
	sort.Strings(cs.Modified)
	sort.Strings(cs.Removed)
	return cs
}

// AssessImpact computes the changed ratio against totalFileCount and the resulting level.
// A touched critical file is always high impact.
func AssessImpact(cs schema.ChangeSet, totalFileCount int) schema.ImpactAssessment {
	changed := cs.Len()
	result := schema.ImpactAssessment{Level: schema.ImpactNone}
	if changed == 0 {
		return result
	}

	result.ChangedRatio = float64(changed) / float64(max(totalFileCount, 1))
	for _, p := range cs.Paths() {
		if IsCriticalFile(p) {
			result.CriticalFiles = append(result.CriticalFiles, p)
		}
	}
	sort.Strings(result.CriticalFiles)
	result.CriticalFileTouched = len(result.CriticalFiles) > 0

	switch {
	case result.CriticalFileTouched || result.ChangedRatio >= HighRatio:
		result.Level = schema.ImpactHigh
	case result.ChangedRatio >= MediumRatio:
		result.Level = schema.ImpactMedium
	default:
		result.Level = schema.ImpactLow
	}
	return result
}

// TotalFileCount returns the size of the union of paths in before and after.
func TotalFileCount(before, after schema.FingerprintMap) int {
	total := len(after)
	for p := range before {
		if _, ok := after[p]; !ok {
			total++
		}
	}
	return total
}

// Compare diffs before and after and assesses the result against their union.
func Compare(key schema.RepositoryKey, before, after schema.FingerprintMap) schema.ChangeReport {
	cs := Diff(before, after)
	return schema.ChangeReport{
		Key:     key,
		Changes: cs,
		Impact:  AssessImpact(cs, TotalFileCount(before, after)),
	}
}
