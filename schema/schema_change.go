package schema

// ChangeSet lists the paths that differ between two fingerprint maps.
// Unchanged paths are omitted. Each slice is sorted.
type ChangeSet struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
}

// Len returns the number of changed paths.
func (c ChangeSet) Len() int {
	return len(c.Added) + len(c.Modified) + len(c.Removed)
}

// IsEmpty reports whether nothing changed.
func (c ChangeSet) IsEmpty() bool {
	return c.Len() == 0
}

// Paths returns every changed path.
func (c ChangeSet) Paths() []string {
	out := make([]string, 0, c.Len())
	out = append(out, c.Added...)
	out = append(out, c.Modified...)
	out = append(out, c.Removed...)
	return out
}

// ImpactAssessment summarizes how significant a change set is.
type ImpactAssessment struct {
	Level               ImpactLevel `json:"level"`
	ChangedRatio        float64     `json:"changed_ratio"`
	CriticalFileTouched bool        `json:"critical_file_touched"`
	CriticalFiles       []string    `json:"critical_files,omitempty"`
}

// ChangeReport is a change set together with its impact.
type ChangeReport struct {
	Key     RepositoryKey    `json:"key"`
	Changes ChangeSet        `json:"changes"`
	Impact  ImpactAssessment `json:"impact"`
}
