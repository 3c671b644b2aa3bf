package backfill

import "time"

// noticeFile is a discovered notice on disk.
type noticeFile struct {
	path    string
	modTime time.Time
}

// FileSummary records what happened to one notice file.
type FileSummary struct {
	Path      string
	Applicant string
	Status    string // reconciliation status, "parsed" in dry runs, or "error"
	Reason    string
}
