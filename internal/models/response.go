package models

import "strings"

// FilingIDCategory labels the backend's filing identifier.
const FilingIDCategory = "FILINGID"

// SubmitterRef carries the originating application's document reference.
type SubmitterRef struct {
	SubmitDocRefID string `json:"submitDocRefId"`
}

// StatusEntry is one (code, text) pair reported by the backend.
type StatusEntry struct {
	StatusCode string `json:"statusCode"`
	StatusText string `json:"statusText"`
}

// FilingResponse is the normalized result forwarded to the originating
// application for both synchronous submissions and asynchronous callbacks.
type FilingResponse struct {
	Submitter           SubmitterRef  `json:"ePros"`
	IsSynchronous       bool          `json:"reviewFilingResponse"`
	CaseDocketID        string        `json:"caseDocketId"`
	CaseTrackingID      string        `json:"caseTrackingId"`
	CaseFilingID        string        `json:"caseFilingId"`
	CaseFilingIDText    string        `json:"caseFilingIdText"`
	CaseFilingDate      string        `json:"caseFilingDate"`
	OrganizationID      string        `json:"organizationId"`
	FilingStatusText    string        `json:"filingStatusText"`
	FilingStatusCode    string        `json:"filingStatusCode"`
	CaseTitleText       string        `json:"filingCaseTitleText"`
	EnvelopeID          string        `json:"filingEnvelopeId"`
	DefendantFullName   string        `json:"filingDefendantFullName"`
	FilingDocuments     []string      `json:"filingDocuments"`
	FilingDocumentGUIDs []string      `json:"filingDocumentsGUID"`
	StatusErrors        []StatusEntry `json:"statusErrorList"`
	Exception           string        `json:"exception"`
}

// NewFilingResponse returns a response with the defaults the gateway expects.
func NewFilingResponse(submitDocRefID string, synchronous bool) *FilingResponse {
	return &FilingResponse{
		Submitter:           SubmitterRef{SubmitDocRefID: submitDocRefID},
		IsSynchronous:       synchronous,
		CaseFilingIDText:    FilingIDCategory,
		FilingDocuments:     []string{},
		FilingDocumentGUIDs: []string{},
		StatusErrors:        []StatusEntry{{StatusCode: "0", StatusText: ""}},
	}
}

// StripBackslashes removes every backslash from s.
func StripBackslashes(s string) string {
	return strings.ReplaceAll(s, `\`, "")
}
