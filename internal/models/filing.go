package models

import "strings"

// TestFixtureMiddleName marks service contacts that exist only for pipeline
// testing. They are resolved but never attached or written into a filing.
const TestFixtureMiddleName = "test"

// FilingConfig is the local-only configuration block embedded in an outbound
// filing. It is read once and stripped before submission.
type FilingConfig struct {
	CaseNumber      string
	CourtLocation   string
	DocketNumber    string
	FilingDocID     string
	Attorney        AttorneyIdentity
	ServiceContacts []ServiceContactDescriptor
	MissingStatutes []StatuteCode
}

// HasDocket reports whether the filing targets an existing case.
func (c FilingConfig) HasDocket() bool { return strings.TrimSpace(c.DocketNumber) != "" }

// AttorneyIdentity is the filing attorney as named by the originating application.
type AttorneyIdentity struct {
	BarNumber  string
	FirstName  string
	MiddleName string
	LastName   string
}

// ServiceContactDescriptor is a service contact as submitted in the filing.
type ServiceContactDescriptor struct {
	FirstName  string
	MiddleName string
	LastName   string
	Phone      string
	Email      string
	Address1   string
	Address2   string
	City       string
	State      string
	Zip        string
	IsPublic   bool
	AdminCopy  string
}

// IsTestFixture reports whether the descriptor is a pipeline test contact.
func (d ServiceContactDescriptor) IsTestFixture() bool {
	return d.MiddleName == TestFixtureMiddleName
}

// StatuteCode describes a charge statute the originating application could not map.
type StatuteCode struct {
	SequenceID         string
	BaseWord           string
	Name               string
	Prefixes           []string
	AdditionalStatutes []StatuteCode
}
