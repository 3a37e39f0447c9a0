package models

// Session is an authenticated backend session. It is valid for one poll cycle.
type Session struct {
	UserID       string
	Email        string
	PasswordHash string
}

// FirmUser is the firm account the session acts for.
type FirmUser struct {
	UserID    string
	FirmID    string
	Email     string
	FirstName string
	LastName  string
}

// AttorneyRecord is an attorney registered with the backend.
type AttorneyRecord struct {
	AttorneyID string
	FirmID     string
	BarNumber  string
	FirstName  string
	MiddleName string
	LastName   string
}

// ServiceContactRecord is a service contact registered with the backend.
type ServiceContactRecord struct {
	ServiceContactID string
	FirmID           string
	FirstName        string
	MiddleName       string
	LastName         string
	Email            string
	Phone            string
	Address1         string
	Address2         string
	City             string
	State            string
	Zip              string
	IsPublic         bool
	AddByFirmName    string
}

// Matches reports whether the record is the same contact as d under the
// private-list identity rule.
func (r ServiceContactRecord) Matches(d ServiceContactDescriptor) bool {
	return r.FirstName == d.FirstName &&
		r.LastName == d.LastName &&
		r.Email == d.Email &&
		r.Address1 == d.Address1 &&
		r.Zip == d.Zip
}

// PaymentAccount is a firm payment account.
type PaymentAccount struct {
	PaymentAccountID string
	AccountName      string
	CardLast4        string
}
