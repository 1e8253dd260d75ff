package core

import (
	"testing"
	"time"

	"github.com/huangsam/reposcout/schema"
	"github.com/stretchr/testify/assert"
)

func TestIsFresh(t *testing.T) {
	snap := &schema.AnalysisSnapshot{CreatedAt: testNow.Add(-2 * time.Hour)}
	assert.True(t, IsFresh(snap, testNow, 24*time.Hour))
	assert.True(t, IsFresh(snap, testNow, 2*time.Hour), "the boundary is inclusive")
	assert.False(t, IsFresh(snap, testNow, time.Hour))
	assert.False(t, IsFresh(snap, testNow, 0), "a zero window disables freshness")
	assert.False(t, IsFresh(nil, testNow, 24*time.Hour))
}

func TestDecide(t *testing.T) {
	snap := &schema.AnalysisSnapshot{}
	tests := []struct {
		name   string
		impact *schema.ImpactAssessment
		want   schema.GateDecision
	}{
		{"no change", &schema.ImpactAssessment{Level: schema.ImpactNone}, schema.ServeCached},
		{"low change", &schema.ImpactAssessment{Level: schema.ImpactLow, ChangedRatio: 0.01}, schema.ServeCached},
		{"medium change", &schema.ImpactAssessment{Level: schema.ImpactMedium}, schema.Reanalyze},
		{"high change", &schema.ImpactAssessment{Level: schema.ImpactHigh}, schema.Reanalyze},
		{"critical file", &schema.ImpactAssessment{Level: schema.ImpactLow, CriticalFileTouched: true}, schema.Reanalyze},
		{"no impact", nil, schema.Reanalyze},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(snap, tt.impact))
		})
	}
	assert.Equal(t, schema.Reanalyze, Decide(nil, &schema.ImpactAssessment{Level: schema.ImpactNone}))
}
