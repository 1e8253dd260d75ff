package algo

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/huangsam/reposcout/schema"
)

// Readme length that earns the deployment documentation point.
const readmeLongChars = 1000

// registryTerms are package registries; a mention signals a published artifact.
var registryTerms = []string{
	"npm", "pypi", "crates.io", "crates", "rubygems", "packagist", "nuget", "maven",
	"hex.pm", "pkg.go.dev", "homebrew", "dockerhub", "docker hub", "cocoapods", "pub.dev",
}

// distributionTerms describe reusable software without naming a registry.
var distributionTerms = map[string]struct{}{
	"library": {}, "package": {}, "sdk": {}, "cli": {}, "plugin": {}, "module": {},
}

// ScoreInput is the subset of repository facts the score depends on.
type ScoreInput struct {
	HasManifest      bool
	HasTests         bool
	HasCI            bool
	HasContainer     bool
	HasOrchestration bool
	HasInfraAsCode   bool
	ReleaseCount     int
	Stars            int
	Forks            int
	PushedAt         time.Time
	CodeLOC          float64
	StructureHits    int
	ReadmeLength     int
	ReadmeHasSection bool
	ReadmeHasCode    bool
	Description      string
}

// NewScoreInput extracts the scoring inputs from collected facts.
func NewScoreInput(facts *schema.RepositoryFacts) ScoreInput {
	_, loc := CodeStats(facts)
	s := facts.Signals
	m := facts.Metadata
	return ScoreInput{
		HasManifest:      s.HasManifest,
		HasTests:         s.HasTests,
		HasCI:            s.HasCI,
		HasContainer:     s.HasContainer,
		HasOrchestration: s.HasOrchestration,
		HasInfraAsCode:   s.HasInfraAsCode,
		ReleaseCount:     m.ReleaseCount,
		Stars:            m.Stars,
		Forks:            m.Forks,
		PushedAt:         m.PushedAt,
		CodeLOC:          loc,
		StructureHits:    len(s.StructureDirs),
		ReadmeLength:     facts.ReadmeLength,
		ReadmeHasSection: facts.ReadmeHasSection,
		ReadmeHasCode:    facts.ReadmeHasCode,
		Description:      m.Description,
	}
}

// clamp bounds v to [0, hi]. NaN becomes 0.
func clamp(v, hi float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}

// boolPoints returns pts when ok is set.
func boolPoints(ok bool, pts float64) float64 {
	if ok {
		return pts
	}
	return 0
}

// logPoints returns min(ln(n+1)*factor, hi), treating negative counts as zero.
func logPoints(n int, factor, hi float64) float64 {
	return math.Min(math.Log1p(float64(max(n, 0)))*factor, hi)
}

// ComputeScore calculates the five-category score of a qualified repository.
// Each category is clamped to its cap, so the total never exceeds 100.
func ComputeScore(in ScoreInput, now time.Time) schema.ScoreBreakdown {
	return schema.ScoreBreakdown{
		Maturity:   clamp(maturityScore(in), schema.MaturityCap),
		Activity:   clamp(activityScore(in, now), schema.ActivityCap),
		CodeScale:  clamp(codeScaleScore(in), schema.CodeScaleCap),
		Deployment: clamp(deploymentScore(in), schema.DeploymentCap),
		Impact:     clamp(impactScore(in), schema.ImpactCap),
	}
}

func maturityScore(in ScoreInput) float64 {
	const check = 6.0
	releases := math.Min(float64(max(in.ReleaseCount, 0))*2, check)
	return boolPoints(in.HasManifest, check) +
		boolPoints(in.HasTests, check) +
		boolPoints(in.HasCI, check) +
		releases +
		boolPoints(in.HasInfraAsCode || in.HasContainer, check)
}

func activityScore(in ScoreInput, now time.Time) float64 {
	return logPoints(in.Stars, 2, 10) + logPoints(in.Forks, 1.5, 8) + recencyPoints(DaysSince(in.PushedAt, now))
}

// recencyPoints steps down with the days since the last push.
func recencyPoints(days float64) float64 {
	switch {
	case days <= 30:
		return 7
	case days <= 90:
		return 5
	case days <= 180:
		return 3
	case days <= 365:
		return 1
	default:
		return 0
	}
}

func codeScaleScore(in ScoreInput) float64 {
	var tier float64
	switch {
	case in.CodeLOC >= 10000:
		tier = 10
	case in.CodeLOC >= 5000:
		tier = 8
	case in.CodeLOC >= 2000:
		tier = 6
	case in.CodeLOC >= 1000:
		tier = 4
	case in.CodeLOC >= 500:
		tier = 2
	}
	return tier + math.Min(float64(max(in.StructureHits, 0))*2, 10)
}

func deploymentScore(in ScoreInput) float64 {
	return boolPoints(in.HasContainer, 5) +
		boolPoints(in.HasOrchestration, 3) +
		boolPoints(in.HasInfraAsCode, 3) +
		boolPoints(in.ReadmeLength > readmeLongChars, 1) +
		boolPoints(in.ReadmeHasSection, 1) +
		boolPoints(in.ReadmeHasCode, 1)
}

func impactScore(in ScoreInput) float64 {
	var pts float64
	switch {
	case in.Stars > 100:
		pts += 3
	case in.Stars > 50:
		pts += 2
	case in.Stars > 10:
		pts++
	}
	switch {
	case in.Forks > 50:
		pts += 2
	case in.Forks > 20:
		pts++
	}
	return pts + distributionPoints(in.Description)
}

// distributionPoints rewards a registry mention over a generic distribution term.
func distributionPoints(description string) float64 {
	text := strings.ToLower(description)
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.'
	})
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[strings.Trim(tok, ".")] = struct{}{}
	}

	for _, term := range registryTerms {
		if strings.Contains(term, " ") {
			if strings.Contains(text, term) {
				return 5
			}
			continue
		}
		if _, ok := set[term]; ok {
			return 5
		}
	}
	for tok := range set {
		if _, ok := distributionTerms[tok]; ok {
			return 2
		}
	}
	return 0
}
