package services

import (
	"context"
	"log/slog"

	"github.com/Lllllllleong/efilingbridge/internal/efm"
	"github.com/Lllllllleong/efilingbridge/internal/filing"
	"github.com/Lllllllleong/efilingbridge/internal/models"
)

var (
	caseLineageCase = filing.Q(filing.NSJustice, "CaseLineageCase")
	caseTrackingID  = filing.Q(filing.NSCore, "CaseTrackingID")
	filingPartyID   = filing.Q(filing.NSECF, "FilingPartyID")
)

// PartyCategory is the category written next to the filing party identifier.
const PartyCategory = "IDENTIFICATION"

// CaseResolver ties a docket number to the backend's case tracking id.
type CaseResolver struct {
	records efm.CourtRecordService
	firm    efm.FirmService
	logger  *slog.Logger
	// SelfTest detaches every contact right after attaching it.
	SelfTest bool
}

func NewCaseResolver(records efm.CourtRecordService, firm efm.FirmService, logger *slog.Logger) *CaseResolver {
	return &CaseResolver{records: records, firm: firm, logger: logger}
}

// ResolveCaseTracking looks up docketNumber in court and picks the case
// belonging to defendant. A blank tracking id is a NotFound error. The
// default filing party is read from the full case record.
func (r *CaseResolver) ResolveCaseTracking(ctx context.Context, s models.Session, court, docketNumber string, defendant filing.PersonName) (models.CaseReference, error) {
	logCtx := r.logger.With("court", court, "docketNumber", docketNumber)
	ref := models.CaseReference{Court: court, DocketNumber: docketNumber, DefendantName: defendant.Sorted()}

	list, err := r.records.GetCaseList(ctx, s, court, docketNumber)
	if err != nil {
		return ref, models.Wrap(models.KindTransport, "GetCaseList", err)
	}
	match := filing.SelectCase(list, defendant.Natural())
	if match.TrackingID == "" {
		return ref, models.Errorf(models.KindNotFound, "GetCaseList",
			"OFS GetCaseList error - could not find matching caseTrackingID for caseDocketNbr(%s)", docketNumber)
	}
	ref.TrackingID, ref.Title = match.TrackingID, match.Title
	logCtx.Info("Case tracking id resolved.", "caseTrackingId", ref.TrackingID, "caseTitle", ref.Title)

	caseDoc, err := r.records.GetCase(ctx, s, court, ref.TrackingID)
	if err != nil {
		return ref, models.Wrap(models.KindTransport, "GetCase", err)
	}
	ref.FilingPartyID = filing.PartyIdentifier(caseDoc)
	if ref.FilingPartyID == "" {
		logCtx.Warn("No default filing party found in case.", "caseTrackingId", ref.TrackingID)
	}
	return ref, nil
}

// CasePatches ties the filing to the resolved case and its filing party.
func CasePatches(ref models.CaseReference) []filing.Patch {
	out := []filing.Patch{
		{Source: "caseTrackingID", Scope: caseLineageCase, Field: caseTrackingID, Value: ref.TrackingID, Target: filing.FirstMatch, Required: true},
	}
	if ref.FilingPartyID != "" {
		out = append(out,
			filing.Patch{Source: "filingPartyID", Scope: filingPartyID, Field: identificationID, Value: ref.FilingPartyID, Target: filing.EveryMatch},
			filing.Patch{Source: "filingPartyID", Scope: filingPartyID, Field: identificationCategory, Value: PartyCategory, Target: filing.EveryMatch},
		)
	}
	return out
}

// AttachServiceContacts attaches every attachable contact to the case.
// Failures are logged and do not stop the filing.
func (r *CaseResolver) AttachServiceContacts(ctx context.Context, s models.Session, trackingID string, contacts []ContactResolution) int {
	attached := 0
	for _, c := range contacts {
		if !c.Attachable() {
			continue
		}
		logCtx := r.logger.With("caseTrackingId", trackingID, "serviceContactId", c.ContactID)
		if err := r.firm.AttachServiceContact(ctx, s, trackingID, c.ContactID); err != nil {
			logCtx.Error("Failed to attach service contact.", "error", err)
			continue
		}
		attached++
		logCtx.Info("Service contact attached.")
		if !r.SelfTest {
			continue
		}
		if err := r.firm.DetachServiceContact(ctx, s, trackingID, c.ContactID); err != nil {
			logCtx.Error("Failed to detach service contact.", "error", err)
			continue
		}
		logCtx.Info("Service contact detached.")
	}
	return attached
}
