package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Lllllllleong/efilingbridge/internal/archive"
	"github.com/Lllllllleong/efilingbridge/internal/efm"
	"github.com/Lllllllleong/efilingbridge/internal/filing"
	"github.com/Lllllllleong/efilingbridge/internal/gateway"
	"github.com/Lllllllleong/efilingbridge/internal/models"
)

const (
	testCourt    = "dc:2nddor"
	testDocket   = "D-021-CV-22-007033"
	testCallback = "https://bridge.example.com/notify"
)

const caseListXML = `<wsdl:CaseListResponseMessage xmlns:wsdl="urn:oasis:names:tc:legalxml-courtfiling:wsdl:WebServicesProfile-Definitions-4.0" xmlns:nc="http://niem.gov/niem/niem-core/2.0" xmlns:crim="urn:oasis:names:tc:legalxml-courtfiling:schema:xsd:CriminalCase-4.0">
  <crim:CriminalCase>
    <nc:CaseTitleText>State v. Richard Roe</nc:CaseTitleText>
    <nc:CaseTrackingID>TRK-0</nc:CaseTrackingID>
  </crim:CriminalCase>
  <crim:CriminalCase>
    <nc:CaseTitleText>State v. John A Doe</nc:CaseTitleText>
    <nc:CaseTrackingID>TRK-1</nc:CaseTrackingID>
  </crim:CriminalCase>
</wsdl:CaseListResponseMessage>`

const emptyCaseListXML = `<wsdl:CaseListResponseMessage xmlns:wsdl="urn:oasis:names:tc:legalxml-courtfiling:wsdl:WebServicesProfile-Definitions-4.0"/>`

const caseXML = `<wsdl:CaseResponseMessage xmlns:wsdl="urn:oasis:names:tc:legalxml-courtfiling:wsdl:WebServicesProfile-Definitions-4.0" xmlns:nc="http://niem.gov/niem/niem-core/2.0" xmlns:ecf="urn:oasis:names:tc:legalxml-courtfiling:schema:xsd:CommonTypes-4.0" xmlns:s="http://niem.gov/niem/structures/2.0">
  <ecf:CaseParticipant>
    <ecf:EntityPerson s:id="Party1">
      <nc:PersonName><nc:PersonGivenName>John</nc:PersonGivenName><nc:PersonSurName>Doe</nc:PersonSurName></nc:PersonName>
      <nc:PersonOtherIdentification><nc:IdentificationID>PARTY-9</nc:IdentificationID></nc:PersonOtherIdentification>
    </ecf:EntityPerson>
  </ecf:CaseParticipant>
</wsdl:CaseResponseMessage>`

func receiptXML(entries ...[2]string) string {
	s := `<wsdl:MessageReceiptMessage xmlns:wsdl="urn:oasis:names:tc:legalxml-courtfiling:wsdl:WebServicesProfile-Definitions-4.0" xmlns:nc="http://niem.gov/niem/niem-core/2.0" xmlns:ecf="urn:oasis:names:tc:legalxml-courtfiling:schema:xsd:CommonTypes-4.0">
  <nc:DocumentIdentification><nc:IdentificationID>FIL-1</nc:IdentificationID><nc:IdentificationCategoryText>FILINGID</nc:IdentificationCategoryText></nc:DocumentIdentification>
  <nc:DocumentIdentification><nc:IdentificationID>ENV-1</nc:IdentificationID><nc:IdentificationCategoryText>ENVELOPEID</nc:IdentificationCategoryText></nc:DocumentIdentification>`
	for _, e := range entries {
		s += fmt.Sprintf(`<ecf:Error><ecf:ErrorCode>%s</ecf:ErrorCode><ecf:ErrorText>%s</ecf:ErrorText></ecf:Error>`, e[0], e[1])
	}
	return s + `</wsdl:MessageReceiptMessage>`
}

var noError = [2]string{"0", "No Error"}

// fakeEFM is an in-memory backend. Created records are added to the lists
// it serves, like the real backend.
type fakeEFM struct {
	mu sync.Mutex

	attorneys []models.AttorneyRecord
	contacts  []models.ServiceContactRecord
	public    []models.ServiceContactRecord
	accounts  []models.PaymentAccount
	caseList  string
	caseDoc   string
	receipt   string

	authErr          error
	createContactErr error
	reviewPanic      bool
	// onCaseList runs inside GetCaseList; a non-nil result is returned as the call's error.
	onCaseList func(ctx context.Context) error

	calls    map[string]int
	courts   []string
	reviewed *filing.Document
	attached []string
	detached []string
}

var _ efm.Client = (*fakeEFM)(nil)

func newFakeEFM() *fakeEFM {
	return &fakeEFM{
		attorneys: []models.AttorneyRecord{{AttorneyID: "ATT-1", FirmID: "FIRM-1", BarNumber: "12345", FirstName: "Jane", LastName: "Smith"}},
		contacts: []models.ServiceContactRecord{{
			ServiceContactID: "SC-1", FirmID: "FIRM-1", FirstName: "Mary", LastName: "Roe",
			Email: "mary.roe@example.com", Address1: "1 Main St", Zip: "87102",
		}},
		accounts: []models.PaymentAccount{{PaymentAccountID: "PA-1", AccountName: "Operating"}},
		caseList: caseListXML,
		caseDoc:  caseXML,
		receipt:  receiptXML(noError),
		calls:    map[string]int{},
	}
}

func (f *fakeEFM) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeEFM) hit(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeEFM) parse(op, xml string) (*filing.Document, error) {
	return filing.Parse(op, []byte(xml))
}

func (f *fakeEFM) Authenticate(ctx context.Context, email, password string) (models.Session, error) {
	f.hit("Authenticate")
	if f.authErr != nil {
		return models.Session{}, f.authErr
	}
	return models.Session{UserID: "U-1", Email: email, PasswordHash: "hash"}, nil
}

func (f *fakeEFM) GetFirmUser(ctx context.Context, s models.Session) (models.FirmUser, error) {
	f.hit("GetFirmUser")
	return models.FirmUser{UserID: s.UserID, FirmID: "FIRM-1", Email: s.Email}, nil
}

func (f *fakeEFM) GetAttorneys(ctx context.Context, s models.Session) ([]models.AttorneyRecord, error) {
	f.hit("GetAttorneys")
	return append([]models.AttorneyRecord(nil), f.attorneys...), nil
}

func (f *fakeEFM) CreateAttorney(ctx context.Context, s models.Session, a models.AttorneyRecord) (string, error) {
	f.hit("CreateAttorney")
	a.AttorneyID = fmt.Sprintf("ATT-NEW-%d", len(f.attorneys)+1)
	f.attorneys = append(f.attorneys, a)
	return a.AttorneyID, nil
}

func (f *fakeEFM) GetServiceContacts(ctx context.Context, s models.Session) ([]models.ServiceContactRecord, error) {
	f.hit("GetServiceContacts")
	return append([]models.ServiceContactRecord(nil), f.contacts...), nil
}

func (f *fakeEFM) GetPublicServiceContacts(ctx context.Context, s models.Session, email, firstName, lastName string) ([]models.ServiceContactRecord, error) {
	f.hit("GetPublicServiceContacts")
	return f.public, nil
}

func (f *fakeEFM) CreateServiceContact(ctx context.Context, s models.Session, c models.ServiceContactRecord) (string, error) {
	f.hit("CreateServiceContact")
	if f.createContactErr != nil {
		return "", f.createContactErr
	}
	c.ServiceContactID = fmt.Sprintf("SC-NEW-%d", len(f.contacts)+1)
	f.contacts = append(f.contacts, c)
	return c.ServiceContactID, nil
}

func (f *fakeEFM) GetServiceContact(ctx context.Context, s models.Session, id string) (models.ServiceContactRecord, error) {
	f.hit("GetServiceContact")
	for _, c := range f.contacts {
		if c.ServiceContactID == id {
			return c, nil
		}
	}
	return models.ServiceContactRecord{}, models.Errorf(models.KindNotFound, "GetServiceContact", "no contact %s", id)
}

func (f *fakeEFM) AttachServiceContact(ctx context.Context, s models.Session, caseTrackingID, contactID string) error {
	f.hit("AttachServiceContact")
	f.attached = append(f.attached, caseTrackingID+"/"+contactID)
	return nil
}

func (f *fakeEFM) DetachServiceContact(ctx context.Context, s models.Session, caseTrackingID, contactID string) error {
	f.hit("DetachServiceContact")
	f.detached = append(f.detached, caseTrackingID+"/"+contactID)
	return nil
}

func (f *fakeEFM) GetPaymentAccounts(ctx context.Context, s models.Session) ([]models.PaymentAccount, error) {
	f.hit("GetPaymentAccounts")
	return f.accounts, nil
}

func (f *fakeEFM) GetCaseList(ctx context.Context, s models.Session, court, docketNumber string) (*filing.Document, error) {
	f.hit("GetCaseList")
	f.courts = append(f.courts, court)
	if f.onCaseList != nil {
		if err := f.onCaseList(ctx); err != nil {
			return nil, err
		}
	}
	return f.parse("GetCaseList", f.caseList)
}

func (f *fakeEFM) GetCase(ctx context.Context, s models.Session, court, trackingID string) (*filing.Document, error) {
	f.hit("GetCase")
	return f.parse("GetCase", f.caseDoc)
}

func (f *fakeEFM) GetPolicy(ctx context.Context, s models.Session, court string) (*filing.Document, error) {
	f.hit("GetPolicy")
	return f.parse("GetPolicy", `<CourtPolicyResponseMessage><Court>`+court+`</Court></CourtPolicyResponseMessage>`)
}

func (f *fakeEFM) GetFeesCalculation(ctx context.Context, s models.Session, doc *filing.Document) (*filing.Document, error) {
	f.hit("GetFeesCalculation")
	return f.parse("GetFeesCalculation", `<FeesCalculationResponseMessage><FeesCalculationAmount>0.00</FeesCalculationAmount></FeesCalculationResponseMessage>`)
}

func (f *fakeEFM) ReviewFiling(ctx context.Context, s models.Session, doc *filing.Document) (*filing.Document, error) {
	f.hit("ReviewFiling")
	if f.reviewPanic {
		panic("backend client blew up")
	}
	f.reviewed = doc
	return f.parse("ReviewFiling", f.receipt)
}

func (f *fakeEFM) GetFilingStatus(ctx context.Context, s models.Session, court, filingID string) (*filing.Document, error) {
	f.hit("GetFilingStatus")
	return f.parse("GetFilingStatus", `<FilingStatusResponseMessage xmlns:nc="http://niem.gov/niem/niem-core/2.0"><nc:CaseTitleText>Status title</nc:CaseTitleText></FilingStatusResponseMessage>`)
}

// fakeSender records every response handed to the gateway.
type fakeSender struct {
	mu    sync.Mutex
	sent  []models.FilingResponse
	reply gateway.Reply
	err   error
	// panics is the number of upcoming calls that panic instead of sending.
	panics int
}

func newFakeSender() *fakeSender { return &fakeSender{reply: gateway.Reply{Code: "200", Status: "OK"}} }

func (s *fakeSender) Send(ctx context.Context, resp models.FilingResponse) (gateway.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panics > 0 {
		s.panics--
		panic("gateway client bug")
	}
	s.sent = append(s.sent, resp)
	return s.reply, s.err
}

// memLedger keeps records in memory, keyed like the Firestore ledger.
type memLedger struct {
	mu      sync.Mutex
	history []models.FilingRecord
}

func (l *memLedger) Track(ctx context.Context, rec models.FilingRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history, rec)
	return nil
}

func (l *memLedger) Lookup(ctx context.Context, fileHash string) (models.FilingRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.history) - 1; i >= 0; i-- {
		if l.history[i].FileHash == fileHash {
			return l.history[i], true, nil
		}
	}
	return models.FilingRecord{}, false, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// queueFixture copies testdata/filing.xml into dir under name.
func queueFixture(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile("testdata/filing.xml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return writeFile(t, dir, name, data)
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// countFiles counts regular files under root.
func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	_ = filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

func archiveWriter(dir string) *archive.Writer {
	return archive.NewWriter(dir, nil, discardLogger())
}
