package core

import "github.com/huangsam/reposcout/schema"

// Decide returns whether the stored snapshot can be served for the current diff.
// Only a minor change that touches no critical file keeps the cached result.
func Decide(snapshot *schema.AnalysisSnapshot, impact *schema.ImpactAssessment) schema.GateDecision {
	if snapshot == nil || impact == nil {
		return schema.Reanalyze
	}
	if impact.Level.AtMost(schema.ImpactLow) && !impact.CriticalFileTouched {
		return schema.ServeCached
	}
	return schema.Reanalyze
}
