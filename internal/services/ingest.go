package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/efilingbridge/internal/gcp"
	"github.com/Lllllllleong/efilingbridge/internal/models"
)

// GCSEvent is the payload of a GCS object finalize event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// ObjectFetcher copies gs://bucket/object to destPath.
type ObjectFetcher func(ctx context.Context, bucket, object, destPath string) error

type IngestConfig struct {
	ProjectID        string
	QueueDir         string
	LedgerCollection string
}

// IngestFunction moves filings dropped in a bucket into the queue directory.
type IngestFunction struct {
	config IngestConfig
	fetch  ObjectFetcher
	ledger Ledger
	logger *slog.Logger
	now    func() time.Time
}

// NewIngestFunction builds the function from the environment.
func NewIngestFunction(ctx context.Context) (*IngestFunction, error) {
	config := IngestConfig{
		ProjectID:        gcp.GetEnv("PROJECT_ID", ""),
		QueueDir:         gcp.GetEnv("QUEUE_DIR", ""),
		LedgerCollection: gcp.GetEnv("FIRESTORE_COLLECTION", ""),
	}
	if config.QueueDir == "" {
		return nil, fmt.Errorf("QUEUE_DIR environment variable must be set")
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	fetch := func(ctx context.Context, bucket, object, destPath string) error {
		return gcp.StreamObject(ctx, storageClient, bucket, object, destPath)
	}

	var ledger Ledger = NopLedger{}
	if config.LedgerCollection != "" {
		if config.ProjectID == "" {
			return nil, fmt.Errorf("PROJECT_ID environment variable must be set when FIRESTORE_COLLECTION is")
		}
		firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		ledger = NewFirestoreLedger(firestoreClient, config.LedgerCollection)
	}

	f := NewIngest(config, fetch, ledger, slog.Default())
	slog.Info("Filing ingest initialized.", "queueDir", config.QueueDir, "ledger", config.LedgerCollection != "")
	return f, nil
}

// NewIngest builds the function from explicit collaborators.
func NewIngest(config IngestConfig, fetch ObjectFetcher, ledger Ledger, logger *slog.Logger) *IngestFunction {
	if ledger == nil {
		ledger = NopLedger{}
	}
	return &IngestFunction{config: config, fetch: fetch, ledger: ledger, logger: logger, now: time.Now}
}

// Process stages the object next to the queue and renames it in, so the
// poller never sees a partial file. Objects that are not .xml are ignored, as
// are drops whose content is already queued or filed.
func (f *IngestFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := f.logger.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !strings.EqualFold(path.Ext(e.Name), ".xml") {
		logCtx.Info("Ignoring object that is not a filing.")
		return nil
	}
	logCtx.Info("Processing new GCS object.")

	if err := os.MkdirAll(f.config.QueueDir, 0o755); err != nil {
		return fmt.Errorf("failed to create queue dir: %w", err)
	}
	staged, err := os.CreateTemp(f.config.QueueDir, ".ingest-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}
	stagedPath := staged.Name()
	staged.Close()
	defer os.Remove(stagedPath)

	if err := f.fetch(ctx, e.Bucket, e.Name, stagedPath); err != nil {
		logCtx.Error("Failed to download filing", "error", err)
		return err
	}

	fileHash, err := calculateFileHash(stagedPath)
	if err != nil {
		logCtx.Error("Failed to calculate file hash", "error", err)
		return fmt.Errorf("failed to calculate file hash: %w", err)
	}
	logCtx = logCtx.With("fileHash", fileHash)

	prior, found, err := f.ledger.Lookup(ctx, fileHash)
	if err != nil {
		logCtx.Warn("Failed to check ledger for duplicates.", "error", err)
	} else if found && prior.Status != string(models.StateFailed) {
		logCtx.Info("Duplicate filing detected. Skipping.", "existingFile", prior.FileName, "status", prior.Status)
		return nil
	}

	name := path.Base(e.Name)
	dest := filepath.Join(f.config.QueueDir, name)
	if err := os.Rename(stagedPath, dest); err != nil {
		return fmt.Errorf("failed to queue %s: %w", name, err)
	}
	logCtx.Info("Filing queued.", "path", dest)

	rec := models.FilingRecord{FileName: name, FileHash: fileHash, Status: string(models.StateQueued), UpdatedAt: f.now()}
	if err := f.ledger.Track(ctx, rec); err != nil {
		logCtx.Warn("Failed to update filing ledger.", "error", err)
	}
	return nil
}
