package efm

import (
	"context"
	"strings"

	"github.com/Lllllllleong/efilingbridge/internal/filing"
	"github.com/Lllllllleong/efilingbridge/internal/models"
	"github.com/beevik/etree"
)

// Authenticate signs in and returns the session used for every later call.
func (c *SOAPClient) Authenticate(ctx context.Context, email, password string) (models.Session, error) {
	req := request("AuthenticateUser")
	field(req, "Email", email)
	field(req, "Password", password)

	res, err := c.call(ctx, c.config.UserServiceURL, "AuthenticateUser", nil, req, true)
	if err != nil {
		return models.Session{}, err
	}
	if err := remoteError("AuthenticateUser", res); err != nil {
		return models.Session{}, err
	}
	return models.Session{
		UserID:       text(res, "UserID"),
		Email:        text(res, "Email"),
		PasswordHash: text(res, "PasswordHash"),
	}, nil
}

func (c *SOAPClient) GetFirmUser(ctx context.Context, s models.Session) (models.FirmUser, error) {
	req := request("GetUser")
	field(req, "UserID", s.UserID)

	res, err := c.call(ctx, c.config.UserServiceURL, "GetUser", &s, req, true)
	if err != nil {
		return models.FirmUser{}, err
	}
	if err := remoteError("GetUser", res); err != nil {
		return models.FirmUser{}, err
	}
	u := filing.FirstLocal(res, "User")
	if u == nil {
		u = res
	}
	return models.FirmUser{
		UserID:    text(u, "UserID"),
		FirmID:    text(u, "FirmID"),
		Email:     text(u, "Email"),
		FirstName: text(u, "FirstName"),
		LastName:  text(u, "LastName"),
	}, nil
}

func (c *SOAPClient) GetAttorneys(ctx context.Context, s models.Session) ([]models.AttorneyRecord, error) {
	res, err := c.firmCall(ctx, s, "GetAttorneyList", request("GetAttorneyList"), true)
	if err != nil {
		return nil, err
	}
	var out []models.AttorneyRecord
	for _, a := range filing.DescendantsLocal(res, "Attorney", true) {
		out = append(out, models.AttorneyRecord{
			AttorneyID: text(a, "AttorneyID"),
			FirmID:     text(a, "FirmID"),
			BarNumber:  text(a, "BarNumber"),
			FirstName:  text(a, "FirstName"),
			MiddleName: text(a, "MiddleName"),
			LastName:   text(a, "LastName"),
		})
	}
	return out, nil
}

func (c *SOAPClient) CreateAttorney(ctx context.Context, s models.Session, a models.AttorneyRecord) (string, error) {
	req := request("CreateAttorney")
	atty := req.CreateElement("tns:Attorney")
	field(atty, "BarNumber", a.BarNumber)
	field(atty, "FirstName", a.FirstName)
	field(atty, "MiddleName", a.MiddleName)
	field(atty, "LastName", a.LastName)
	field(atty, "FirmID", a.FirmID)

	res, err := c.firmCall(ctx, s, "CreateAttorney", req, false)
	if err != nil {
		return "", err
	}
	return text(res, "AttorneyID"), nil
}

func (c *SOAPClient) GetServiceContacts(ctx context.Context, s models.Session) ([]models.ServiceContactRecord, error) {
	res, err := c.firmCall(ctx, s, "GetServiceContactList", request("GetServiceContactList"), true)
	if err != nil {
		return nil, err
	}
	return contacts(res), nil
}

func (c *SOAPClient) GetPublicServiceContacts(ctx context.Context, s models.Session, email, firstName, lastName string) ([]models.ServiceContactRecord, error) {
	req := request("GetPublicList")
	field(req, "Email", email)
	field(req, "FirstName", firstName)
	field(req, "LastName", lastName)

	res, err := c.firmCall(ctx, s, "GetPublicList", req, true)
	if err != nil {
		return nil, err
	}
	return contacts(res), nil
}

func (c *SOAPClient) CreateServiceContact(ctx context.Context, s models.Session, sc models.ServiceContactRecord) (string, error) {
	req := request("CreateServiceContact")
	contact := req.CreateElement("tns:ServiceContact")
	field(contact, "FirstName", sc.FirstName)
	field(contact, "MiddleName", sc.MiddleName)
	field(contact, "LastName", sc.LastName)
	field(contact, "Email", sc.Email)
	field(contact, "PhoneNumber", sc.Phone)
	field(contact, "FirmID", sc.FirmID)
	field(contact, "IsPublic", boolText(sc.IsPublic))
	field(contact, "AdministrativeCopy", sc.AddByFirmName)
	addr := contact.CreateElement("tns:Address")
	field(addr, "AddressLine1", sc.Address1)
	field(addr, "AddressLine2", sc.Address2)
	field(addr, "City", sc.City)
	field(addr, "State", sc.State)
	field(addr, "ZipCode", sc.Zip)

	res, err := c.firmCall(ctx, s, "CreateServiceContact", req, false)
	if err != nil {
		return "", err
	}
	return text(res, "ServiceContactID"), nil
}

func (c *SOAPClient) GetServiceContact(ctx context.Context, s models.Session, id string) (models.ServiceContactRecord, error) {
	req := request("GetServiceContact")
	field(req, "ServiceContactID", id)

	res, err := c.firmCall(ctx, s, "GetServiceContact", req, true)
	if err != nil {
		return models.ServiceContactRecord{}, err
	}
	found := contacts(res)
	if len(found) == 0 {
		return models.ServiceContactRecord{}, models.Errorf(models.KindNotFound, "GetServiceContact", "service contact %s not returned", id)
	}
	return found[0], nil
}

func (c *SOAPClient) AttachServiceContact(ctx context.Context, s models.Session, caseTrackingID, contactID string) error {
	return c.serviceContactLink(ctx, s, "AttachServiceContact", caseTrackingID, contactID)
}

func (c *SOAPClient) DetachServiceContact(ctx context.Context, s models.Session, caseTrackingID, contactID string) error {
	return c.serviceContactLink(ctx, s, "DetachServiceContact", caseTrackingID, contactID)
}

func (c *SOAPClient) serviceContactLink(ctx context.Context, s models.Session, op, caseTrackingID, contactID string) error {
	req := request(op)
	field(req, "CaseID", caseTrackingID)
	field(req, "CasePartyID", "")
	field(req, "ServiceContactID", contactID)
	_, err := c.firmCall(ctx, s, op, req, false)
	return err
}

func (c *SOAPClient) GetPaymentAccounts(ctx context.Context, s models.Session) ([]models.PaymentAccount, error) {
	res, err := c.firmCall(ctx, s, "GetPaymentAccountList", request("GetPaymentAccountList"), true)
	if err != nil {
		return nil, err
	}
	var out []models.PaymentAccount
	for _, p := range filing.DescendantsLocal(res, "PaymentAccount", true) {
		out = append(out, models.PaymentAccount{
			PaymentAccountID: text(p, "PaymentAccountID"),
			AccountName:      text(p, "AccountName"),
			CardLast4:        text(p, "CardLast4"),
		})
	}
	return out, nil
}

func (c *SOAPClient) firmCall(ctx context.Context, s models.Session, op string, req *etree.Element, retryable bool) (*etree.Element, error) {
	res, err := c.call(ctx, c.config.FirmServiceURL, op, &s, req, retryable)
	if err != nil {
		return nil, err
	}
	if err := remoteError(op, res); err != nil {
		return nil, err
	}
	return res, nil
}

func contacts(res *etree.Element) []models.ServiceContactRecord {
	var out []models.ServiceContactRecord
	for _, sc := range filing.DescendantsLocal(res, "ServiceContact", true) {
		addr := filing.ChildLocal(sc, "Address")
		out = append(out, models.ServiceContactRecord{
			ServiceContactID: text(sc, "ServiceContactID"),
			FirmID:           text(sc, "FirmID"),
			FirstName:        text(sc, "FirstName"),
			MiddleName:       text(sc, "MiddleName"),
			LastName:         text(sc, "LastName"),
			Email:            text(sc, "Email"),
			Phone:            text(sc, "PhoneNumber"),
			Address1:         text(addr, "AddressLine1"),
			Address2:         text(addr, "AddressLine2"),
			City:             text(addr, "City"),
			State:            text(addr, "State"),
			Zip:              text(addr, "ZipCode"),
			IsPublic:         strings.EqualFold(text(sc, "IsPublic"), "true"),
			AddByFirmName:    text(sc, "AddByFirmName"),
		})
	}
	return out
}

func request(op string) *etree.Element {
	e := etree.NewElement("tns:" + op)
	e.CreateAttr("xmlns:tns", NSServices)
	return e
}

func field(parent *etree.Element, name, value string) {
	parent.CreateElement("tns:" + name).SetText(value)
}

func text(e *etree.Element, local string) string {
	return strings.TrimSpace(filing.Value(filing.ChildLocal(e, local)))
}

func boolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
