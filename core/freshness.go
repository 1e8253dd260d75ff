package core

import (
	"time"

	"github.com/huangsam/reposcout/schema"
)

// IsFresh reports whether a stored snapshot is young enough to serve without any network call.
func IsFresh(snapshot *schema.AnalysisSnapshot, now time.Time, maxAge time.Duration) bool {
	if snapshot == nil || maxAge <= 0 {
		return false
	}
	return snapshot.Age(now) <= maxAge
}
