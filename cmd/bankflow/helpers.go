package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/egorv/bankflow/internal/blob"
	"github.com/egorv/bankflow/internal/llm"
	"github.com/egorv/bankflow/internal/parser"
	"github.com/egorv/bankflow/internal/pipeline"
	"github.com/egorv/bankflow/internal/service"
	"github.com/egorv/bankflow/internal/storage"
)

func databasePath() string {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/bankflow/bankflow.db"
	}
	return expandPath(dbPath)
}

// expandPath expands a leading tilde and environment variables.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// initStorage opens the database and runs pending migrations.
func initStorage(ctx context.Context) (service.Storage, error) {
	store, err := storage.NewSQLiteStorage(databasePath())
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// initBlobStore selects the statement object store. Local mode keeps files
// in memory, which only makes sense for single-process runs where ingest
// and process share one store.
func initBlobStore(ctx context.Context) (service.BlobStore, error) {
	if viper.GetBool("storage.local") {
		return blob.NewMemoryStore(), nil
	}
	return blob.NewGCSStore(ctx)
}

// initClassifier builds the LLM client from config. Commands that never
// classify pass through a nil classifier.
func initClassifier() (llm.Client, error) {
	client, err := llm.NewClient(llm.Config{
		Provider: viper.GetString("llm.provider"),
		APIKey:   viper.GetString("llm.api_key"),
		Model:    viper.GetString("llm.model"),
	})
	if err != nil {
		return nil, err
	}
	return llm.NewRetryableClient(client, service.RetryOptions{MaxAttempts: 3}), nil
}

func parserOptions() parser.Options {
	return parser.Options{
		ReportSkippedRows: viper.GetBool("parser.report_skipped_rows"),
	}
}

func initPipeline(store service.Storage, blobs service.BlobStore, classifier service.Classifier) *pipeline.Pipeline {
	return pipeline.New(store, blobs, classifier,
		pipeline.WithParserOptions(parserOptions()))
}
