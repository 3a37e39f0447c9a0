package efm

import (
	"context"

	"github.com/Lllllllleong/efilingbridge/internal/filing"
	"github.com/Lllllllleong/efilingbridge/internal/models"
	"github.com/beevik/etree"
)

// Message namespaces of the ECF 4.0 queries sent by this client.
const (
	nsCaseListQuery     = "urn:oasis:names:tc:legalxml-courtfiling:schema:xsd:CaseListQueryMessage-4.0"
	nsCaseQuery         = "urn:oasis:names:tc:legalxml-courtfiling:schema:xsd:CaseQueryMessage-4.0"
	nsPolicyQuery       = "urn:oasis:names:tc:legalxml-courtfiling:schema:xsd:CourtPolicyQueryMessage-4.0"
	nsFilingStatusQuery = "urn:oasis:names:tc:legalxml-courtfiling:schema:xsd:FilingStatusQueryMessage-4.0"

	sendingMDELocation = "https://filingassemblymde.com"
	sendingMDEProfile  = "urn:oasis:names:tc:legalxml-courtfiling:schema:xsd:WebServicesMessaging-2.0"
)

func (c *SOAPClient) GetCaseList(ctx context.Context, s models.Session, court, docketNumber string) (*filing.Document, error) {
	msg := queryMessage("CaseListQueryMessage", nsCaseListQuery, court)
	q := msg.CreateElement("CaseListQueryCase")
	q.CreateElement("nc:CaseTitleText")
	q.CreateElement("nc:CaseCategoryText")
	q.CreateElement("nc:CaseTrackingID")
	q.CreateElement("nc:CaseDocketID").SetText(docketNumber)
	msg.CreateElement("CaseListQueryTimeRange")

	return c.message(ctx, c.config.CourtRecordURL, "GetCaseList", s, msg, true)
}

func (c *SOAPClient) GetCase(ctx context.Context, s models.Session, court, trackingID string) (*filing.Document, error) {
	msg := queryMessage("CaseQueryMessage", nsCaseQuery, court)
	msg.CreateElement("nc:CaseTrackingID").SetText(trackingID)
	criteria := msg.CreateElement("CaseQueryCriteria")
	criteria.CreateElement("IncludeParticipantsIndicator").SetText("true")
	criteria.CreateElement("IncludeDocketEntryIndicator").SetText("false")
	criteria.CreateElement("IncludeCalendarEventIndicator").SetText("false")

	return c.message(ctx, c.config.CourtRecordURL, "GetCase", s, msg, true)
}

func (c *SOAPClient) GetPolicy(ctx context.Context, s models.Session, court string) (*filing.Document, error) {
	msg := queryMessage("CourtPolicyQueryMessage", nsPolicyQuery, court)
	return c.message(ctx, c.config.FilingReviewURL, "GetPolicy", s, msg, true)
}

func (c *SOAPClient) GetFilingStatus(ctx context.Context, s models.Session, court, filingID string) (*filing.Document, error) {
	msg := queryMessage("FilingStatusQueryMessage", nsFilingStatusQuery, court)
	msg.CreateElement("nc:DocumentIdentification").CreateElement("nc:IdentificationID").SetText(filingID)
	return c.message(ctx, c.config.FilingReviewURL, "GetFilingStatus", s, msg, true)
}

func (c *SOAPClient) GetFeesCalculation(ctx context.Context, s models.Session, doc *filing.Document) (*filing.Document, error) {
	return c.message(ctx, c.config.FilingReviewURL, "GetFeesCalculation", s, doc.Root().Copy(), true)
}

// ReviewFiling submits the filing. It is never retried.
func (c *SOAPClient) ReviewFiling(ctx context.Context, s models.Session, doc *filing.Document) (*filing.Document, error) {
	return c.message(ctx, c.config.FilingReviewURL, "ReviewFiling", s, doc.Root().Copy(), false)
}

// message sends an ECF message wrapped in its operation element and returns
// the response message as a document.
func (c *SOAPClient) message(ctx context.Context, endpoint, op string, s models.Session, msg *etree.Element, retryable bool) (*filing.Document, error) {
	wrapper := etree.NewElement("wsdl:" + op)
	wrapper.CreateAttr("xmlns:wsdl", filing.NSProfile)
	wrapper.AddChild(msg)

	res, err := c.call(ctx, endpoint, op, &s, wrapper, retryable)
	if err != nil {
		return nil, err
	}
	return document(op, res), nil
}

// queryMessage builds the common header of an ECF query addressed to court.
func queryMessage(name, space, court string) *etree.Element {
	msg := etree.NewElement(name)
	msg.CreateAttr("xmlns", space)
	msg.CreateAttr("xmlns:j", filing.NSJustice)
	msg.CreateAttr("xmlns:nc", filing.NSCore)
	msg.CreateAttr("xmlns:ecf", filing.NSECF)

	msg.CreateElement("ecf:SendingMDELocationID").CreateElement("nc:IdentificationID").SetText(sendingMDELocation)
	msg.CreateElement("ecf:SendingMDEProfileCode").SetText(sendingMDEProfile)
	msg.CreateElement("ecf:QuerySubmitter").CreateElement("ecf:EntityPerson")
	msg.CreateElement("j:CaseCourt").
		CreateElement("nc:OrganizationIdentification").
		CreateElement("nc:IdentificationID").SetText(court)
	return msg
}
