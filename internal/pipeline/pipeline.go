// Package pipeline implements the three queue-invoked operations: statement
// file acquisition, import processing, and batch categorization. Every
// operation is safe to re-invoke with the same arguments.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/egorv/bankflow/internal/common"
	"github.com/egorv/bankflow/internal/engine"
	"github.com/egorv/bankflow/internal/llm"
	"github.com/egorv/bankflow/internal/model"
	"github.com/egorv/bankflow/internal/parser"
	"github.com/egorv/bankflow/internal/service"
)

// DefaultCategoryName is the bucket used when the classifier's answer is
// missing or not an allowed category.
const DefaultCategoryName = "Uncategorized"

// Pipeline wires storage, the blob store, the reconciliation engine and the
// classifier into the queue-facing operations.
type Pipeline struct {
	store      service.Storage
	blobs      service.BlobStore
	classifier service.Classifier
	httpClient *http.Client
	reconciler *engine.Reconciler
	parserOpts parser.Options
	retryOpts  service.RetryOptions
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHTTPClient overrides the download client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Pipeline) { p.httpClient = client }
}

// WithParserOptions sets the options passed to statement parsers.
func WithParserOptions(opts parser.Options) Option {
	return func(p *Pipeline) { p.parserOpts = opts }
}

// WithRetryOptions sets the retry policy for download calls.
func WithRetryOptions(opts service.RetryOptions) Option {
	return func(p *Pipeline) { p.retryOpts = opts }
}

// New creates a pipeline.
func New(store service.Storage, blobs service.BlobStore, classifier service.Classifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		blobs:      blobs,
		classifier: classifier,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		reconciler: engine.NewReconciler(store),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestFile downloads an uploaded statement, stores it in the blob store
// and creates the import record. Repeated delivery of the same upload is a
// no-op returning the existing import's identity.
func (p *Pipeline) IngestFile(ctx context.Context, ownerID int64, filename, bucket, source, payloadURL string) (string, error) {
	data, err := p.download(ctx, payloadURL)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", filename, err)
	}

	key := "statement/" + filename
	if err := p.blobs.Put(ctx, bucket, key, data); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", key, err)
	}

	imp, created, err := p.store.GetOrCreateImport(ctx, ownerID, key, source)
	if err != nil {
		return "", err
	}

	slog.Info("Statement file ingested",
		"owner_id", ownerID,
		"import_id", imp.ID,
		"source", source,
		"created", created,
		"bytes", len(data))

	if !created {
		return fmt.Sprintf("import %s already exists", imp.ID), nil
	}
	return fmt.Sprintf("import %s created", imp.ID), nil
}

func (p *Pipeline) download(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := common.WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		resp, err := p.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		data, err = io.ReadAll(resp.Body)
		return err
	}, p.retryOpts)
	return data, err
}

// ProcessImport parses and reconciles one stored statement. The import is
// claimed before its content is touched so a crash leaves a visible,
// re-triable Processing state. A fatal parse error flips the import to
// Failed and returns the error so the queue layer retries.
func (p *Pipeline) ProcessImport(ctx context.Context, bucket, importID string) (string, error) {
	imp, err := p.store.GetImport(ctx, importID)
	if err != nil {
		return "", err
	}
	if imp.Status == model.ImportCompleted {
		return fmt.Sprintf("import %s already completed", imp.ID), nil
	}

	if err := p.store.SetImportStatus(ctx, imp.ID, model.ImportProcessing, ""); err != nil {
		return "", err
	}

	summary, err := p.processClaimed(ctx, bucket, imp)
	if err != nil {
		if statusErr := p.store.SetImportStatus(ctx, imp.ID, model.ImportFailed, failureNotes(err)); statusErr != nil {
			slog.Error("Failed to record import failure",
				"import_id", imp.ID, "error", statusErr)
		}
		return "", err
	}
	return summary, nil
}

// failureNotes renders an error for the import notes column. The full chain
// stays in the logs; the notes keep the message meant for the statement owner.
func failureNotes(err error) string {
	var uerr *common.UserError
	if errors.As(err, &uerr) {
		return uerr.UserMessage
	}
	return err.Error()
}

func (p *Pipeline) processClaimed(ctx context.Context, bucket string, imp *model.StatementImport) (string, error) {
	data, err := p.blobs.Get(ctx, bucket, imp.StorageKey)
	if err != nil {
		return "", fmt.Errorf("failed to fetch statement: %w", err)
	}

	src, err := parser.ForSource(imp.Source, p.parserOpts)
	if err != nil {
		return "", err
	}
	stmt, err := src.Parse(ctx, data)
	if err != nil {
		return "", common.NewUserError("statement could not be parsed", err)
	}

	result, err := p.reconciler.Reconcile(ctx, imp.OwnerID, imp, stmt)
	if err != nil {
		return "", err
	}

	notes := result.Summary()
	if len(result.Diagnostics) > 0 {
		notes += "\n" + strings.Join(result.Diagnostics, "\n")
	}
	if err := p.store.SetImportStatus(ctx, imp.ID, model.ImportCompleted, notes); err != nil {
		return "", err
	}

	slog.Info("Import processed",
		"import_id", imp.ID,
		"created", result.Created,
		"skipped", result.Skipped,
		"diagnostics", len(result.Diagnostics))
	return notes, nil
}

// CategorizeBatch classifies the still-uncategorized transactions among the
// given ids and persists the assignments. Missing or malformed classifier
// answers fall back to the default bucket.
func (p *Pipeline) CategorizeBatch(ctx context.Context, ids []string) (string, error) {
	if p.classifier == nil {
		return "", fmt.Errorf("%w: no classifier configured", common.ErrMissingConfig)
	}

	txns, err := p.store.GetUncategorizedByIDs(ctx, ids)
	if err != nil {
		return "", err
	}
	if len(txns) == 0 {
		return "nothing to categorize", nil
	}

	options, allowed, defaultID, err := p.categoryCatalog(ctx)
	if err != nil {
		return "", err
	}
	if len(options) == 0 {
		return "", common.ErrClassificationFailed
	}

	places := make([]string, len(txns))
	for i, txn := range txns {
		places[i] = txn.Place
	}

	response, err := p.classifier.Complete(ctx, llm.BuildPrompt(options, places))
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrClassificationFailed, err)
	}
	assignments := llm.ParseAssignments(response)

	categorized := 0
	for i, txn := range txns {
		categoryID, ok := assignments[i+1]
		if !ok || !allowed[categoryID] {
			if defaultID == 0 {
				continue
			}
			categoryID = defaultID
		}
		if err := p.store.SetTransactionCategory(ctx, txn.ID, categoryID); err != nil {
			return "", err
		}
		categorized++
	}

	slog.Info("Batch categorized",
		"requested", len(ids),
		"uncategorized", len(txns),
		"categorized", categorized)
	return fmt.Sprintf("categorized %d of %d", categorized, len(txns)), nil
}

// categoryCatalog loads the categorizable set, labels each entry as
// "parent:name" and locates the default bucket.
func (p *Pipeline) categoryCatalog(ctx context.Context) ([]llm.CategoryOption, map[int64]bool, int64, error) {
	categories, err := p.store.GetCategorizableCategories(ctx)
	if err != nil {
		return nil, nil, 0, err
	}

	parents := make(map[int64]string)
	options := make([]llm.CategoryOption, 0, len(categories))
	allowed := make(map[int64]bool, len(categories))
	var defaultID int64

	for _, cat := range categories {
		label := cat.Name
		if cat.ParentID != nil {
			name, ok := parents[*cat.ParentID]
			if !ok {
				parent, err := p.store.GetCategoryByID(ctx, *cat.ParentID)
				if err != nil {
					return nil, nil, 0, err
				}
				name = parent.Name
				parents[*cat.ParentID] = name
			}
			label = name + ":" + cat.Name
		}

		options = append(options, llm.CategoryOption{ID: cat.ID, Label: label})
		allowed[cat.ID] = true
		if strings.EqualFold(cat.Name, DefaultCategoryName) {
			defaultID = cat.ID
		}
	}
	return options, allowed, defaultID, nil
}
