package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/efilingbridge/internal/models"
	"github.com/google/uuid"
)

// Ledger mirrors queue item lifecycles outside the host. The queue
// directories stay authoritative; ledger failures are logged, never fatal.
type Ledger interface {
	Track(ctx context.Context, rec models.FilingRecord) error
	// Lookup returns the latest record for a file with the given content hash.
	Lookup(ctx context.Context, fileHash string) (models.FilingRecord, bool, error)
}

// NopLedger records nothing.
type NopLedger struct{}

func (NopLedger) Track(context.Context, models.FilingRecord) error { return nil }

func (NopLedger) Lookup(context.Context, string) (models.FilingRecord, bool, error) {
	return models.FilingRecord{}, false, nil
}

// FirestoreLedger keeps one document per (file name, content hash) pair, so
// every transition of the same filing lands on the same document.
type FirestoreLedger struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

func NewFirestoreLedger(client *firestore.Client, collection string) *FirestoreLedger {
	return &FirestoreLedger{client: client, collection: collection, now: time.Now}
}

// RecordID is the ledger document id for a filing.
func RecordID(fileName, fileHash string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fileName+"/"+fileHash)).String()
}

func (l *FirestoreLedger) Track(ctx context.Context, rec models.FilingRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = l.now()
	}
	ref := l.client.Collection(l.collection).Doc(RecordID(rec.FileName, rec.FileHash))
	if _, err := ref.Set(ctx, rec); err != nil {
		return fmt.Errorf("failed to record status %s for %s: %w", rec.Status, rec.FileName, err)
	}
	return nil
}

func (l *FirestoreLedger) Lookup(ctx context.Context, fileHash string) (models.FilingRecord, bool, error) {
	docs, err := l.client.Collection(l.collection).
		Where("fileHash", "==", fileHash).
		OrderBy("updatedAt", firestore.Desc).
		Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return models.FilingRecord{}, false, fmt.Errorf("failed to query ledger: %w", err)
	}
	if len(docs) == 0 {
		return models.FilingRecord{}, false, nil
	}
	var rec models.FilingRecord
	if err := docs[0].DataTo(&rec); err != nil {
		return models.FilingRecord{}, false, fmt.Errorf("failed to decode ledger record %s: %w", docs[0].Ref.ID, err)
	}
	return rec, true, nil
}

func (l *FirestoreLedger) Close() error { return l.client.Close() }

func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
