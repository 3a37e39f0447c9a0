package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/efilingbridge/internal/efm"
	"github.com/Lllllllleong/efilingbridge/internal/filing"
	"github.com/Lllllllleong/efilingbridge/internal/models"
)

var (
	caseParticipant        = filing.Q(filing.NSECF, "CaseParticipant")
	filingAttorneyID       = filing.Q(filing.NSECF, "FilingAttorneyID")
	electronicServiceInfo  = filing.Q(filing.NSECF, "ElectronicServiceInformation")
	identificationID       = filing.Q(filing.NSCore, "IdentificationID")
	identificationCategory = filing.Q(filing.NSCore, "IdentificationCategoryText")
)

// EntityResolver matches the attorney and service contacts named by a filing
// to backend records, creating the ones that do not exist yet.
type EntityResolver struct {
	firm   efm.FirmService
	logger *slog.Logger
}

func NewEntityResolver(firm efm.FirmService, logger *slog.Logger) *EntityResolver {
	return &EntityResolver{firm: firm, logger: logger}
}

// AttorneyResolution is the backend attorney a filing is submitted under.
type AttorneyResolution struct {
	AttorneyID string
	FirmID     string
	Created    bool
}

// ContactResolution is the outcome for one service contact descriptor.
// ContactID is only meaningful when Err is nil.
type ContactResolution struct {
	Descriptor models.ServiceContactDescriptor
	ContactID  string
	Created    bool
	Public     bool
	Err        error
}

// Attachable reports whether the contact should be attached to the case:
// an existing record that is not a pipeline test fixture.
func (c ContactResolution) Attachable() bool {
	return c.Err == nil && !c.Created && c.ContactID != "" && !c.Descriptor.IsTestFixture()
}

// FirmID returns the firm of the first known attorney that has one.
func FirmID(known []models.AttorneyRecord) string {
	for _, a := range known {
		if strings.TrimSpace(a.FirmID) != "" {
			return a.FirmID
		}
	}
	return ""
}

// ResolveAttorney finds the filing attorney in known by first name, last name
// and bar number, or creates it under the firm of the known attorneys.
func (r *EntityResolver) ResolveAttorney(ctx context.Context, s models.Session, atty models.AttorneyIdentity, known []models.AttorneyRecord) (AttorneyResolution, error) {
	firmID := FirmID(known)
	for _, a := range known {
		if a.FirstName == atty.FirstName && a.LastName == atty.LastName && a.BarNumber == atty.BarNumber {
			r.logger.Info("Filing attorney found.", "attorneyId", a.AttorneyID, "barNumber", a.BarNumber)
			return AttorneyResolution{AttorneyID: a.AttorneyID, FirmID: firmID}, nil
		}
	}

	if firmID == "" {
		return AttorneyResolution{}, models.Errorf(models.KindResolution, "CreateAttorney",
			"no firm id available to create attorney %s %s (bar %s)", atty.FirstName, atty.LastName, atty.BarNumber)
	}
	id, err := r.firm.CreateAttorney(ctx, s, models.AttorneyRecord{
		FirmID:     firmID,
		BarNumber:  atty.BarNumber,
		FirstName:  atty.FirstName,
		MiddleName: atty.MiddleName,
		LastName:   atty.LastName,
	})
	if err != nil {
		return AttorneyResolution{}, models.Wrap(models.KindResolution, "CreateAttorney", err)
	}
	if strings.TrimSpace(id) == "" {
		return AttorneyResolution{}, models.Errorf(models.KindResolution, "CreateAttorney", "backend returned no attorney id for bar %s", atty.BarNumber)
	}
	r.logger.Info("Filing attorney created.", "attorneyId", id, "barNumber", atty.BarNumber, "firmId", firmID)
	return AttorneyResolution{AttorneyID: id, FirmID: firmID, Created: true}, nil
}

// AttorneyPatches fills the first case participant identifier and every
// filing attorney identifier that is still blank.
func AttorneyPatches(attorneyID string) []filing.Patch {
	return []filing.Patch{
		{Source: "attorneyID", Scope: caseParticipant, Field: identificationID, Value: attorneyID, Target: filing.FirstMatch, OnlyIfBlank: true},
		{Source: "attorneyID", Scope: filingAttorneyID, Field: identificationID, Value: attorneyID, Target: filing.EveryMatch, OnlyIfBlank: true},
	}
}

// ResolveServiceContacts resolves each descriptor independently. A public
// contact with the same email wins over the firm's own contacts, which are
// matched on first name, last name, email, address line 1 and zip. Unmatched
// descriptors are created under firmID and read back. A failure affects only
// its own descriptor.
func (r *EntityResolver) ResolveServiceContacts(ctx context.Context, s models.Session, firmID string, descriptors []models.ServiceContactDescriptor, known []models.ServiceContactRecord) []ContactResolution {
	out := make([]ContactResolution, 0, len(descriptors))
	for _, d := range descriptors {
		res := r.resolveContact(ctx, s, firmID, d, known)
		logCtx := r.logger.With("firstName", d.FirstName, "lastName", d.LastName, "email", d.Email)
		switch {
		case res.Err != nil:
			logCtx.Error("Failed to resolve service contact.", "error", res.Err)
		case res.Created:
			logCtx.Info("Service contact created.", "serviceContactId", res.ContactID)
		default:
			logCtx.Info("Service contact found.", "serviceContactId", res.ContactID, "public", res.Public)
		}
		out = append(out, res)
	}
	return out
}

func (r *EntityResolver) resolveContact(ctx context.Context, s models.Session, firmID string, d models.ServiceContactDescriptor, known []models.ServiceContactRecord) ContactResolution {
	res := ContactResolution{Descriptor: d}

	public, err := r.firm.GetPublicServiceContacts(ctx, s, d.Email, d.FirstName, d.LastName)
	if err != nil {
		r.logger.Warn("Public service contact lookup failed, using firm contacts only.", "email", d.Email, "error", err)
	}
	for _, p := range public {
		if p.Email == d.Email {
			res.ContactID, res.Public = p.ServiceContactID, true
			return res
		}
	}
	for _, k := range known {
		if k.Matches(d) {
			res.ContactID = k.ServiceContactID
			return res
		}
	}

	if firmID == "" {
		res.Err = models.Errorf(models.KindResolution, "CreateServiceContact", "no firm id available to create service contact %s %s", d.FirstName, d.LastName)
		return res
	}
	id, err := r.firm.CreateServiceContact(ctx, s, models.ServiceContactRecord{
		FirmID:        firmID,
		FirstName:     d.FirstName,
		MiddleName:    d.MiddleName,
		LastName:      d.LastName,
		Email:         d.Email,
		Phone:         d.Phone,
		Address1:      d.Address1,
		Address2:      d.Address2,
		City:          d.City,
		State:         d.State,
		Zip:           d.Zip,
		IsPublic:      d.IsPublic,
		AddByFirmName: d.AdminCopy,
	})
	if err != nil {
		res.Err = models.Wrap(models.KindResolution, "CreateServiceContact", err)
		return res
	}
	if _, err := r.firm.GetServiceContact(ctx, s, id); err != nil {
		res.Err = models.Wrap(models.KindResolution, "GetServiceContact", err)
		return res
	}
	res.ContactID, res.Created = id, true
	return res
}

// ContactPatches writes each usable contact id into the next blank
// electronic service slot. Test fixtures and failed contacts are skipped.
func ContactPatches(contacts []ContactResolution) []filing.Patch {
	var out []filing.Patch
	for _, c := range contacts {
		if c.Err != nil || c.ContactID == "" || c.Descriptor.IsTestFixture() {
			continue
		}
		out = append(out, filing.Patch{
			Source: "serviceContactID",
			Scope:  electronicServiceInfo,
			Field:  identificationID,
			Value:  c.ContactID,
			Target: filing.FirstBlank,
		})
	}
	return out
}
