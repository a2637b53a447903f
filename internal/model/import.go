package model

import "time"

// ImportStatus is the lifecycle state of a statement import.
type ImportStatus string

const (
	// ImportPending means the file is stored but not yet processed.
	ImportPending ImportStatus = "pending"
	// ImportProcessing means a worker has claimed the import.
	ImportProcessing ImportStatus = "processing"
	// ImportCompleted means every row was reconciled or skipped.
	ImportCompleted ImportStatus = "completed"
	// ImportFailed means a fatal error aborted the import.
	ImportFailed ImportStatus = "failed"
)

// StatementImport tracks one uploaded statement file. It is created on
// upload and mutated only by the ingestion pipeline; once Completed or
// Failed it stays immutable and re-processing happens via a new import.
type StatementImport struct {
	CreatedAt   time.Time
	ProcessedAt *time.Time
	ID          string
	Source      string
	StorageKey  string
	Status      ImportStatus
	Notes       string
	OwnerID     int64
}

// Terminal reports whether the import reached a final state.
func (s *StatementImport) Terminal() bool {
	return s.Status == ImportCompleted || s.Status == ImportFailed
}
