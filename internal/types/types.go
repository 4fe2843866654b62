package types

// SweepParams configures one orphaned-image sweep. An image blob is an
// orphan when no catalog record references its key, which happens when an
// image write succeeded but the catalog write that should have referenced it
// did not, or a record was overwritten while its image stayed behind.
type SweepParams struct {
	// Blobs younger than GraceMinutes are never deleted, so an image whose
	// catalog write is still in flight survives the sweep. Zero means the
	// default of 60.
	GraceMinutes int  `json:"grace_minutes"`
	DryRun       bool `json:"dry_run"` // report orphans without deleting
}

// SweepResult reports what a sweep saw and removed.
type SweepResult struct {
	Scanned  int      `json:"scanned"`
	Orphaned int      `json:"orphaned"`
	Deleted  int      `json:"deleted"`
	Keys     []string `json:"keys,omitempty"`
}
