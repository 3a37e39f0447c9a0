package efm

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Lllllllleong/efilingbridge/internal/filing"
	"github.com/Lllllllleong/efilingbridge/internal/models"
	"github.com/beevik/etree"
	"golang.org/x/crypto/pkcs12"
)

// NSServices is the namespace of the backend's user and firm services.
const NSServices = "urn:tyler:efm:services"

// Config locates the backend service endpoints and the client certificate.
type Config struct {
	UserServiceURL  string
	FirmServiceURL  string
	CourtRecordURL  string
	FilingReviewURL string
	PFXPath         string
	PFXPassword     string
	Timeout         time.Duration
	MaxRetries      int
	InitialBackoff  time.Duration
}

// SOAPClient talks to the backend over SOAP 1.1. It implements Client.
type SOAPClient struct {
	http   *http.Client
	config Config
	logger *slog.Logger
}

var _ Client = (*SOAPClient)(nil)

// NewSOAPClient builds a client. When PFXPath is set the certificate in it is
// presented on every TLS handshake.
func NewSOAPClient(config Config, logger *slog.Logger) (*SOAPClient, error) {
	if config.UserServiceURL == "" || config.FirmServiceURL == "" || config.CourtRecordURL == "" || config.FilingReviewURL == "" {
		return nil, fmt.Errorf("all efm service URLs must be set")
	}
	if config.Timeout <= 0 {
		config.Timeout = 100 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.PFXPath != "" {
		cert, err := loadPFX(config.PFXPath, config.PFXPassword)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	}

	return &SOAPClient{
		http:   &http.Client{Timeout: config.Timeout, Transport: transport},
		config: config,
		logger: logger,
	}, nil
}

func loadPFX(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to read client certificate %s: %w", path, err)
	}
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to decode client certificate %s: %w", path, err)
	}
	return tls.Certificate{Certificate: [][]byte{cert.Raw}, PrivateKey: key, Leaf: cert}, nil
}

// call posts body inside a SOAP envelope and returns the response payload.
// Read-only operations are retried with exponential backoff; submissions are not.
func (c *SOAPClient) call(ctx context.Context, endpoint, op string, s *models.Session, body *etree.Element, retryable bool) (*etree.Element, error) {
	env := envelope(s, body)
	payload, err := env.WriteToBytes()
	if err != nil {
		return nil, models.Wrap(models.KindUnexpected, op, fmt.Errorf("failed to encode envelope: %w", err))
	}

	attempts := 1
	if retryable {
		attempts = c.config.MaxRetries
	}
	backoff := c.config.InitialBackoff
	var lastErr error
	for i := 0; i < attempts; i++ {
		result, err := c.post(ctx, endpoint, op, payload)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		c.logger.Warn("EFM call failed, will retry.", "operation", op, "attempt", i+1, "maxRetries", attempts, "backoff", backoff.String(), "error", err)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return nil, models.Wrap(models.KindTransport, op, ctx.Err())
		}
	}
	return nil, lastErr
}

func (c *SOAPClient) post(ctx context.Context, endpoint, op string, payload []byte) (*etree.Element, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, models.Wrap(models.KindTransport, op, err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `"`+filing.NSProfile+":"+op+`"`)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, models.Wrap(models.KindTransport, op, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.Wrap(models.KindTransport, op, fmt.Errorf("failed to read response: %w", err))
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil || doc.Root() == nil {
		return nil, models.Errorf(models.KindTransport, op, "unreadable response (HTTP %d)", resp.StatusCode)
	}
	result, err := Unwrap(doc.Root())
	if err != nil {
		return nil, models.Wrap(models.KindTransport, op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, models.Errorf(models.KindTransport, op, "unexpected HTTP status %d", resp.StatusCode)
	}
	return result, nil
}

func envelope(s *models.Session, body *etree.Element) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", filing.NSSOAP)
	if s != nil {
		header := env.CreateElement("soap:Header").CreateElement("tns:UserNameHeader")
		header.CreateAttr("xmlns:tns", NSServices)
		header.CreateElement("UserName").SetText(s.Email)
		header.CreateElement("Password").SetText(s.PasswordHash)
	}
	env.CreateElement("soap:Body").AddChild(body)
	return doc
}

// Unwrap returns the payload carried by a SOAP envelope. An operation
// wrapper holding a single ECF message is unwrapped as well. Elements that
// are not envelopes are returned unchanged.
func Unwrap(root *etree.Element) (*etree.Element, error) {
	if !filing.Q(filing.NSSOAP, "Envelope").Is(root) {
		return root, nil
	}
	body := filing.Child(root, filing.Q(filing.NSSOAP, "Body"))
	if body == nil || len(body.ChildElements()) == 0 {
		return nil, fmt.Errorf("SOAP envelope has no body payload")
	}
	payload := body.ChildElements()[0]
	if filing.Q(filing.NSSOAP, "Fault").Is(payload) {
		return nil, fmt.Errorf("SOAP fault: %s", strings.TrimSpace(filing.Value(filing.ChildLocal(payload, "faultstring"))))
	}
	if inner := payload.ChildElements(); len(inner) == 1 && strings.HasSuffix(inner[0].Tag, "Message") {
		return inner[0], nil
	}
	return payload, nil
}

// remoteError returns a RemoteError when result carries a non-zero error code.
func remoteError(op string, result *etree.Element) error {
	e := filing.FirstLocal(result, "Error")
	if e == nil {
		return nil
	}
	code := strings.TrimSpace(filing.Value(filing.ChildLocal(e, "ErrorCode")))
	if code == "" || code == "0" {
		return nil
	}
	return &RemoteError{Op: op, Code: code, Text: strings.TrimSpace(filing.Value(filing.ChildLocal(e, "ErrorText")))}
}

func document(op string, e *etree.Element) *filing.Document {
	return filing.FromElement(op, e)
}
