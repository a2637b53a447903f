// Package jobs defines the task queue boundary: the typed payloads for the
// three pipeline operations and the publisher/consumer contracts the worker
// is built against.
package jobs

import (
	"context"
	"time"
)

// Type identifies a job kind on the queue.
type Type string

const (
	// TypeIngestFile acquires an uploaded statement file.
	TypeIngestFile Type = "ingest_file"
	// TypeProcessImport parses and reconciles a stored statement.
	TypeProcessImport Type = "process_import"
	// TypeCategorizeBatch classifies a batch of uncategorized transactions.
	TypeCategorizeBatch Type = "categorize_batch"
)

// Job is the envelope shared by every payload on the queue.
type Job interface {
	GetID() string
	GetType() Type
}

// Envelope carries the queue bookkeeping common to all payloads.
type Envelope struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	Attempt   int       `json:"attempt"`
}

// GetID implements the Job interface.
func (e *Envelope) GetID() string { return e.ID }

// IngestFileJob asks the pipeline to acquire one uploaded statement file.
type IngestFileJob struct {
	Envelope
	Filename   string `json:"filename"`
	Bucket     string `json:"bucket"`
	Source     string `json:"source"`
	PayloadURL string `json:"payload_url"`
	OwnerID    int64  `json:"owner_id"`
}

// GetType implements the Job interface.
func (j *IngestFileJob) GetType() Type { return TypeIngestFile }

// ProcessImportJob asks the pipeline to parse and reconcile one import.
type ProcessImportJob struct {
	Envelope
	Bucket   string `json:"bucket"`
	ImportID string `json:"import_id"`
}

// GetType implements the Job interface.
func (j *ProcessImportJob) GetType() Type { return TypeProcessImport }

// CategorizeBatchJob asks the pipeline to classify a transaction batch.
type CategorizeBatchJob struct {
	Envelope
	TransactionIDs []string `json:"transaction_ids"`
	OwnerID        int64    `json:"owner_id"`
}

// GetType implements the Job interface.
func (j *CategorizeBatchJob) GetType() Type { return TypeCategorizeBatch }

// Handler processes one job. A returned error signals the queue layer to
// retry per its policy; idempotent pipeline operations make the re-delivery
// safe.
type Handler func(ctx context.Context, job Job) error

// RetryPolicy bounds queue-level re-delivery of failed jobs.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy is the worker's standard bounded retry.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	Backoff:     2 * time.Second,
}

// Publisher enqueues jobs. Implementations must tolerate duplicate
// publication of the same logical work.
type Publisher interface {
	Publish(ctx context.Context, job Job) error
	Close() error
}

// Consumer delivers jobs to a handler until stopped.
type Consumer interface {
	Start(ctx context.Context, handler Handler) error
	Stop(ctx context.Context) error
}
