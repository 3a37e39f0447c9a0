package models

import "time"

// FilingRecord mirrors a queue item's lifecycle in Firestore.
// The filesystem remains the source of truth.
type FilingRecord struct {
	FileName       string    `firestore:"fileName,omitempty"`
	FileHash       string    `firestore:"fileHash,omitempty"`
	CycleID        string    `firestore:"cycleId,omitempty"`
	Status         string    `firestore:"status,omitempty"`
	DocketNumber   string    `firestore:"docketNumber,omitempty"`
	CaseTrackingID string    `firestore:"caseTrackingId,omitempty"`
	FilingID       string    `firestore:"filingId,omitempty"`
	ErrorKind      string    `firestore:"errorKind,omitempty"`
	ErrorDetails   string    `firestore:"errorDetails,omitempty"`
	UpdatedAt      time.Time `firestore:"updatedAt,omitempty"`
}
