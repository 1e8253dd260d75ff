package algo

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/huangsam/reposcout/schema"
)

// Signal patterns, matched against lowercased tree paths.
var (
	manifestPatterns = []string{
		"**/package.json", "**/package-lock.json", "**/requirements.txt", "**/pyproject.toml",
		"**/setup.py", "**/pipfile", "**/go.mod", "**/cargo.toml", "**/pom.xml",
		"**/build.gradle", "**/build.gradle.kts", "**/gemfile", "**/composer.json",
	}
	testPatterns = []string{
		"**/*_test.go", "**/test_*.py", "**/*_test.py", "**/*.{test,spec}.{js,jsx,ts,tsx,mjs}",
		"**/{test,tests,spec,__tests__}/**", "**/*_spec.rb", "**/*test.java", "**/*tests.cs",
	}
	ciPatterns = []string{
		".github/workflows/*.{yml,yaml}", ".gitlab-ci.yml", ".travis.yml", "jenkinsfile",
		".circleci/config.yml", "azure-pipelines.yml", "bitbucket-pipelines.yml",
	}
	containerPatterns = []string{
		"**/dockerfile", "**/dockerfile.*", "**/*.dockerfile", "**/containerfile",
		"**/docker-compose.{yml,yaml}", "**/compose.{yml,yaml}",
	}
	orchestrationPatterns = []string{
		"**/{k8s,kubernetes,helm,charts,manifests}/**/*.{yml,yaml}", "**/chart.yaml",
		"**/kustomization.{yml,yaml}", "**/skaffold.yaml", "**/fly.toml", "**/app.yaml",
	}
	infraPatterns = []string{
		"**/*.tf", "**/*.tfvars", "**/pulumi.yaml", "**/serverless.{yml,yaml}", "**/cdk.json",
		"**/{ansible,terraform,cloudformation}/**", "**/template.{yml,yaml}",
	}
	makefilePatterns = []string{"**/makefile", "**/gnumakefile", "**/justfile", "**/taskfile.{yml,yaml}"}
)

// sourceExtensions identify files counted as source code.
var sourceExtensions = map[string]struct{}{
	".go": {}, ".py": {}, ".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {}, ".mjs": {}, ".java": {},
	".kt": {}, ".kts": {}, ".scala": {}, ".rs": {}, ".c": {}, ".h": {}, ".cc": {}, ".cpp": {},
	".hpp": {}, ".cs": {}, ".rb": {}, ".php": {}, ".swift": {}, ".m": {}, ".dart": {}, ".lua": {},
	".ex": {}, ".exs": {}, ".erl": {}, ".hs": {}, ".clj": {}, ".vue": {}, ".svelte": {}, ".sh": {},
	".r": {}, ".jl": {}, ".zig": {}, ".nim": {}, ".sql": {},
}

// structureDirs are conventional top-level code directories.
var structureDirs = map[string]struct{}{
	"src": {}, "lib": {}, "app": {}, "components": {}, "utils": {}, "pkg": {},
	"cmd": {}, "internal": {}, "api": {}, "services": {}, "core": {}, "modules": {},
}

// readmeSection matches a markdown ATX heading.
var readmeSection = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)

// matchAny reports whether p matches one of the patterns.
func matchAny(patterns []string, p string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, p); err == nil && ok {
			return true
		}
	}
	return false
}

// isRootReadme reports whether p is a readme at the repository root.
func isRootReadme(p string) bool {
	if strings.Contains(p, "/") {
		return false
	}
	return p == "readme" || strings.HasPrefix(p, "readme.")
}

// IsSourceFile reports whether p has a recognized source code extension.
func IsSourceFile(p string) bool {
	_, ok := sourceExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

// DeriveSignals computes file-presence signals from a repository tree.
func DeriveSignals(tree []schema.TreeEntry) schema.RepoSignals {
	var s schema.RepoSignals
	dirs := map[string]struct{}{}

	for _, entry := range tree {
		p := strings.ToLower(entry.Path)
		if !entry.IsBlob() {
			continue
		}
		s.FileCount++
		s.TotalBytes += entry.Size

		if top, _, nested := strings.Cut(p, "/"); nested {
			if _, ok := structureDirs[top]; ok {
				dirs[top] = struct{}{}
			}
		}
		if IsSourceFile(p) {
			s.SourceFileCount++
			s.SourceBytes += entry.Size
		}

		s.HasReadme = s.HasReadme || isRootReadme(p)
		s.HasManifest = s.HasManifest || matchAny(manifestPatterns, p)
		s.HasTests = s.HasTests || matchAny(testPatterns, p)
		s.HasCI = s.HasCI || matchAny(ciPatterns, p)
		s.HasContainer = s.HasContainer || matchAny(containerPatterns, p)
		s.HasOrchestration = s.HasOrchestration || matchAny(orchestrationPatterns, p)
		s.HasInfraAsCode = s.HasInfraAsCode || matchAny(infraPatterns, p)
		s.HasMakefile = s.HasMakefile || matchAny(makefilePatterns, p)
	}

	for d := range dirs {
		s.StructureDirs = append(s.StructureDirs, d)
	}
	sort.Strings(s.StructureDirs)
	return s
}

// ReadmeStats holds the readme facts used by scoring.
type ReadmeStats struct {
	Length     int
	HasSection bool
	HasCode    bool
}

// AnalyzeReadme inspects readme content for length, headings and fenced code blocks.
func AnalyzeReadme(content []byte) ReadmeStats {
	text := string(content)
	return ReadmeStats{
		Length:     len([]rune(text)),
		HasSection: readmeSection.MatchString(text),
		HasCode:    strings.Contains(text, "```") || strings.Contains(text, "~~~"),
	}
}
