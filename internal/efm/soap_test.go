package efm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Lllllllleong/efilingbridge/internal/filing"
	"github.com/Lllllllleong/efilingbridge/internal/models"
)

func newTestClient(t *testing.T, url string, retries int) *SOAPClient {
	t.Helper()
	c, err := NewSOAPClient(Config{
		UserServiceURL:  url,
		FirmServiceURL:  url,
		CourtRecordURL:  url,
		FilingReviewURL: url,
		Timeout:         5 * time.Second,
		MaxRetries:      retries,
		InitialBackoff:  time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewSOAPClient: %v", err)
	}
	return c
}

func soapResponse(payload string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>` + payload + `</s:Body></s:Envelope>`
}

func TestNewSOAPClientRequiresURLs(t *testing.T) {
	if _, err := NewSOAPClient(Config{UserServiceURL: "http://x"}, slog.Default()); err == nil {
		t.Fatal("expected error for missing service URLs")
	}
}

func TestAuthenticate(t *testing.T) {
	var action, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action = r.Header.Get("SOAPAction")
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		fmt.Fprint(w, soapResponse(`<AuthenticateUserResponse xmlns="urn:tyler:efm:services">
			<Error><ErrorCode>0</ErrorCode><ErrorText>No Error</ErrorText></Error>
			<UserID>u-1</UserID><Email>filer@example.com</Email><PasswordHash>hash</PasswordHash>
		</AuthenticateUserResponse>`))
	}))
	defer srv.Close()

	s, err := newTestClient(t, srv.URL, 1).Authenticate(context.Background(), "filer@example.com", "secret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if s.UserID != "u-1" || s.PasswordHash != "hash" {
		t.Errorf("session = %+v", s)
	}
	if !strings.HasSuffix(action, `:AuthenticateUser"`) {
		t.Errorf("SOAPAction = %q", action)
	}
	if strings.Contains(body, "UserNameHeader") {
		t.Error("authenticate request must not carry a session header")
	}
	if !strings.Contains(body, "<tns:Password>secret</tns:Password>") {
		t.Errorf("request body missing password: %s", body)
	}
}

func TestFirmCallSendsSessionHeader(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		fmt.Fprint(w, soapResponse(`<GetAttorneyListResponse xmlns="urn:tyler:efm:services"><AttorneyListResponse>
			<Error><ErrorCode>0</ErrorCode></Error>
			<Attorney><AttorneyID>a-1</AttorneyID><FirmID>f-1</FirmID><BarNumber>12345</BarNumber><FirstName>Jane</FirstName><LastName>Smith</LastName></Attorney>
			<Attorney><AttorneyID>a-2</AttorneyID><BarNumber>999</BarNumber></Attorney>
		</AttorneyListResponse></GetAttorneyListResponse>`))
	}))
	defer srv.Close()

	s := models.Session{Email: "filer@example.com", PasswordHash: "hash"}
	got, err := newTestClient(t, srv.URL, 1).GetAttorneys(context.Background(), s)
	if err != nil {
		t.Fatalf("GetAttorneys: %v", err)
	}
	if len(got) != 2 || got[0].AttorneyID != "a-1" || got[0].FirmID != "f-1" || got[1].BarNumber != "999" {
		t.Errorf("attorneys = %+v", got)
	}
	if !strings.Contains(body, "<UserName>filer@example.com</UserName>") || !strings.Contains(body, "<Password>hash</Password>") {
		t.Errorf("missing UserNameHeader in %s", body)
	}
}

func TestRemoteErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, soapResponse(`<CreateAttorneyResponse xmlns="urn:tyler:efm:services">
			<Error><ErrorCode>57</ErrorCode><ErrorText>Bar number already exists</ErrorText></Error>
		</CreateAttorneyResponse>`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 1).CreateAttorney(context.Background(), models.Session{}, models.AttorneyRecord{BarNumber: "1"})
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("err = %v, want *RemoteError", err)
	}
	if remote.Code != "57" || remote.Error() != "CreateAttorney: errText:Bar number already exists errCode:57" {
		t.Errorf("remote = %+v (%q)", remote, remote.Error())
	}
}

func TestGetServiceContactParsesAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, soapResponse(`<GetServiceContactResponse xmlns="urn:tyler:efm:services">
			<Error><ErrorCode>0</ErrorCode></Error>
			<ServiceContact><ServiceContactID>sc-9</ServiceContactID><FirstName>Mary</FirstName><LastName>Roe</LastName>
			<Email>mary.roe@example.com</Email><IsPublic>true</IsPublic>
			<Address><AddressLine1>1 Main St</AddressLine1><ZipCode>87102</ZipCode></Address></ServiceContact>
		</GetServiceContactResponse>`))
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv.URL, 1).GetServiceContact(context.Background(), models.Session{}, "sc-9")
	if err != nil {
		t.Fatalf("GetServiceContact: %v", err)
	}
	if got.ServiceContactID != "sc-9" || got.Address1 != "1 Main St" || got.Zip != "87102" || !got.IsPublic {
		t.Errorf("contact = %+v", got)
	}
}

func TestGetCaseListUnwrapsMessage(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		fmt.Fprint(w, soapResponse(`<GetCaseListResponse xmlns="urn:oasis:names:tc:legalxml-courtfiling:wsdl:WebServicesProfile-Definitions-4.0">
			<CaseListResponseMessage xmlns="urn:oasis:names:tc:legalxml-courtfiling:schema:xsd:CaseListResponseMessage-4.0" xmlns:nc="http://niem.gov/niem/niem-core/2.0">
				<nc:CaseTrackingID>T-1</nc:CaseTrackingID>
			</CaseListResponseMessage>
		</GetCaseListResponse>`))
	}))
	defer srv.Close()

	doc, err := newTestClient(t, srv.URL, 1).GetCaseList(context.Background(), models.Session{}, "dc:2nddor", "D-021-CV-22-007033")
	if err != nil {
		t.Fatalf("GetCaseList: %v", err)
	}
	if doc.Root().Tag != "CaseListResponseMessage" {
		t.Errorf("root = %s", doc.Root().Tag)
	}
	if id := doc.First(filing.Q(filing.NSCore, "CaseTrackingID")); id == nil || id.Text() != "T-1" {
		t.Error("tracking id not readable with inherited namespace")
	}
	for _, want := range []string{"<nc:CaseDocketID>D-021-CV-22-007033</nc:CaseDocketID>", "<nc:IdentificationID>dc:2nddor</nc:IdentificationID>", "<wsdl:GetCaseList"} {
		if !strings.Contains(body, want) {
			t.Errorf("request missing %q", want)
		}
	}
}

func TestQueriesAreRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, soapResponse(`<GetPolicyResponse><CourtPolicyResponseMessage/></GetPolicyResponse>`))
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv.URL, 3).GetPolicy(context.Background(), models.Session{}, "dc:2nddor"); err != nil {
		t.Fatalf("GetPolicy: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestReviewFilingIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	doc, err := filing.Parse("f.xml", []byte(`<ReviewFilingRequestMessage/>`))
	if err != nil {
		t.Fatal(err)
	}
	_, err = newTestClient(t, srv.URL, 3).ReviewFiling(context.Background(), models.Session{}, doc)
	if models.KindOf(err) != models.KindTransport {
		t.Errorf("kind = %v, want transport (err %v)", models.KindOf(err), err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestSOAPFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, soapResponse(`<s:Fault><faultcode>s:Client</faultcode><faultstring>Invalid credentials</faultstring></s:Fault>`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 1).GetFirmUser(context.Background(), models.Session{})
	if err == nil || !strings.Contains(err.Error(), "Invalid credentials") {
		t.Errorf("err = %v", err)
	}
}
