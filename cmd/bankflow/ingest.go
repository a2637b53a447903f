package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/egorv/bankflow/internal/parser"
	"github.com/egorv/bankflow/internal/pipeline"
	"github.com/egorv/bankflow/internal/service"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [files or URLs...]",
		Short: "Ingest statement files into the ledger",
		Long: `Store one or more statement exports and create their import records.

Arguments may be local file paths or HTTP(S) URLs. Re-ingesting a file that
was already stored under the same key is a no-op.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().Int64("owner", 0, "owner id the statements belong to")
	cmd.Flags().String("source", "", "statement source (bcc, ff, commbank, generic)")
	cmd.Flags().Bool("normalize-card-export", false, "merge continuation lines in card CSV exports before storing")
	cmd.Flags().Bool("process", false, "process each import immediately after ingesting")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ownerID, _ := cmd.Flags().GetInt64("owner")
	source, _ := cmd.Flags().GetString("source")
	normalize, _ := cmd.Flags().GetBool("normalize-card-export")
	processNow, _ := cmd.Flags().GetBool("process")

	if _, err := parser.ForSource(source, parserOptions()); err != nil {
		return err
	}

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

	pipe := initPipeline(store, blobs, nil)
	bucket := viper.GetString("storage.bucket")

	bar := progressbar.NewOptions(len(args),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Ingesting statements..."),
	)

	var failed int
	for _, arg := range args {
		status, err := ingestOne(ctx, pipe, store, blobs, bucket, ownerID, source, arg, normalize, processNow)
		if err != nil {
			failed++
			slog.Error("Failed to ingest statement", "target", arg, "error", err)
		} else {
			slog.Info("Statement ingested", "target", arg, "status", status)
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	if failed > 0 {
		return fmt.Errorf("%d of %d statements failed", failed, len(args))
	}
	return nil
}

func ingestOne(ctx context.Context, pipe *pipeline.Pipeline, store service.Storage, blobs service.BlobStore, bucket string, ownerID int64, source, target string, normalize, processNow bool) (string, error) {
	var (
		status string
		err    error
	)
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		status, err = pipe.IngestFile(ctx, ownerID, filepath.Base(target), bucket, source, target)
	} else {
		status, err = ingestLocalFile(ctx, store, blobs, bucket, ownerID, source, target, normalize)
	}
	if err != nil || !processNow {
		return status, err
	}

	key := "statement/" + filepath.Base(target)
	imp, _, err := store.GetOrCreateImport(ctx, ownerID, key, source)
	if err != nil {
		return status, err
	}
	summary, err := pipe.ProcessImport(ctx, bucket, imp.ID)
	if err != nil {
		return status, err
	}
	return summary, nil
}

// ingestLocalFile stores a statement read from disk, bypassing the download
// step of the URL path.
func ingestLocalFile(ctx context.Context, store service.Storage, blobs service.BlobStore, bucket string, ownerID int64, source, path string, normalize bool) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	if normalize {
		data, err = parser.NormalizeContinuations(data)
		if err != nil {
			return "", fmt.Errorf("failed to normalize %s: %w", path, err)
		}
	}

	key := "statement/" + filepath.Base(path)
	if err := blobs.Put(ctx, bucket, key, data); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", key, err)
	}

	imp, created, err := store.GetOrCreateImport(ctx, ownerID, key, source)
	if err != nil {
		return "", err
	}
	if !created {
		return fmt.Sprintf("import %s already exists", imp.ID), nil
	}
	return fmt.Sprintf("import %s created", imp.ID), nil
}
