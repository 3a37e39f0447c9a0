package models

// CaseReference ties a local docket number to the backend case.
type CaseReference struct {
	Court         string
	DocketNumber  string
	TrackingID    string
	Title         string
	FilingPartyID string
	DefendantName string
}
