// Package efm is the boundary to the court's electronic filing manager.
// Operations are grouped the way the backend exposes them: user, firm,
// court record and filing review services.
package efm

import (
	"context"
	"fmt"

	"github.com/Lllllllleong/efilingbridge/internal/filing"
	"github.com/Lllllllleong/efilingbridge/internal/models"
)

// UserService authenticates the filer.
type UserService interface {
	Authenticate(ctx context.Context, email, password string) (models.Session, error)
	GetFirmUser(ctx context.Context, s models.Session) (models.FirmUser, error)
}

// FirmService manages the firm's attorneys, service contacts and payment accounts.
type FirmService interface {
	GetAttorneys(ctx context.Context, s models.Session) ([]models.AttorneyRecord, error)
	CreateAttorney(ctx context.Context, s models.Session, a models.AttorneyRecord) (string, error)
	GetServiceContacts(ctx context.Context, s models.Session) ([]models.ServiceContactRecord, error)
	GetPublicServiceContacts(ctx context.Context, s models.Session, email, firstName, lastName string) ([]models.ServiceContactRecord, error)
	CreateServiceContact(ctx context.Context, s models.Session, c models.ServiceContactRecord) (string, error)
	GetServiceContact(ctx context.Context, s models.Session, id string) (models.ServiceContactRecord, error)
	AttachServiceContact(ctx context.Context, s models.Session, caseTrackingID, contactID string) error
	DetachServiceContact(ctx context.Context, s models.Session, caseTrackingID, contactID string) error
	GetPaymentAccounts(ctx context.Context, s models.Session) ([]models.PaymentAccount, error)
}

// CourtRecordService queries cases known to the court.
type CourtRecordService interface {
	GetCaseList(ctx context.Context, s models.Session, court, docketNumber string) (*filing.Document, error)
	GetCase(ctx context.Context, s models.Session, court, trackingID string) (*filing.Document, error)
}

// FilingService submits filings for review.
type FilingService interface {
	GetPolicy(ctx context.Context, s models.Session, court string) (*filing.Document, error)
	GetFeesCalculation(ctx context.Context, s models.Session, doc *filing.Document) (*filing.Document, error)
	ReviewFiling(ctx context.Context, s models.Session, doc *filing.Document) (*filing.Document, error)
	GetFilingStatus(ctx context.Context, s models.Session, court, filingID string) (*filing.Document, error)
}

// Client is the full backend surface used by the submission pipeline.
type Client interface {
	UserService
	FirmService
	CourtRecordService
	FilingService
}

// RemoteError is a business error reported by the backend in its response body.
type RemoteError struct {
	Op   string
	Code string
	Text string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: errText:%s errCode:%s", e.Op, e.Text, e.Code)
}
