package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/egorv/bankflow/internal/jobs"
	"github.com/egorv/bankflow/internal/jobs/inmemory"
	"github.com/egorv/bankflow/internal/pipeline"
)

func workerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the statement processing worker",
		Long: `Start a queue consumer wired to the ingestion pipeline.

The worker polls for pending imports, enqueues a processing job for each,
and handles jobs with bounded retry. It runs until interrupted.`,
		RunE: runWorker,
	}

	cmd.Flags().Int("workers", 3, "concurrent job handlers")
	cmd.Flags().Duration("poll-interval", 30*time.Second, "pending import poll interval")
	cmd.Flags().Int("max-attempts", 3, "job retry budget")

	return cmd
}

func runWorker(cmd *cobra.Command, _ []string) error {
	workers, _ := cmd.Flags().GetInt("workers")
	pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
	maxAttempts, _ := cmd.Flags().GetInt("max-attempts")

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	blobs, err := initBlobStore(ctx)
	if err != nil {
		return err
	}

	classifier, err := initClassifier()
	if err != nil {
		return err
	}

	pipe := initPipeline(store, blobs, classifier)
	bucket := viper.GetString("storage.bucket")

	queue := inmemory.NewQueue(128, workers, jobs.RetryPolicy{
		MaxAttempts: maxAttempts,
		Backoff:     2 * time.Second,
	})

	if err := queue.Start(ctx, jobHandler(pipe)); err != nil {
		return err
	}
	slog.Info("Worker started",
		"workers", workers,
		"poll_interval", pollInterval,
		"bucket", bucket)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	enqueue := func() {
		imports, err := store.ListPendingImports(ctx)
		if err != nil {
			slog.Error("Failed to list pending imports", "error", err)
			return
		}
		for _, imp := range imports {
			job := &jobs.ProcessImportJob{Bucket: bucket, ImportID: imp.ID}
			if err := queue.Publish(ctx, job); err != nil {
				slog.Error("Failed to enqueue import", "import_id", imp.ID, "error", err)
			}
		}
		if len(imports) > 0 {
			slog.Info("Enqueued pending imports", "count", len(imports))
		}
	}

	enqueue()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Worker shutting down")
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return queue.Stop(stopCtx)
		case <-ticker.C:
			enqueue()
		}
	}
}

// jobHandler dispatches queue jobs to the pipeline. Errors propagate so the
// queue layer drives retries.
func jobHandler(pipe *pipeline.Pipeline) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		switch j := job.(type) {
		case *jobs.IngestFileJob:
			_, err := pipe.IngestFile(ctx, j.OwnerID, j.Filename, j.Bucket, j.Source, j.PayloadURL)
			return err
		case *jobs.ProcessImportJob:
			_, err := pipe.ProcessImport(ctx, j.Bucket, j.ImportID)
			return err
		case *jobs.CategorizeBatchJob:
			_, err := pipe.CategorizeBatch(ctx, j.TransactionIDs)
			return err
		default:
			return fmt.Errorf("unknown job type %q", job.GetType())
		}
	}
}
