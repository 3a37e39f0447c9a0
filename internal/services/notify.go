package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/efilingbridge/internal/archive"
	"github.com/Lllllllleong/efilingbridge/internal/filing"
	"github.com/Lllllllleong/efilingbridge/internal/gateway"
	"github.com/Lllllllleong/efilingbridge/internal/gcp"
	"github.com/Lllllllleong/efilingbridge/internal/models"
	"github.com/beevik/etree"
	"github.com/google/uuid"
)

var (
	callbackMessage   = filing.Q(filing.NSCallback, "ReviewFilingCallbackMessage")
	criminalCase      = filing.Q(filing.NSCriminal, "CriminalCase")
	civilCase         = filing.Q(filing.NSCivil, "CivilCase")
	documentFiledDate = filing.Q(filing.NSCore, "DocumentFiledDate")
	caseTitleText     = filing.Q(filing.NSCore, "CaseTitleText")
	caseDocketID      = filing.Q(filing.NSCore, "CaseDocketID")
	justiceCaseAug    = filing.Q(filing.NSJustice, "CaseAugmentation")
	caseCourt         = filing.Q(filing.NSJustice, "CaseCourt")
	orgIdentification = filing.Q(filing.NSCore, "OrganizationIdentification")
	filingStatus      = filing.Q(filing.NSECF, "FilingStatus")
	statusDescription = filing.Q(filing.NSCore, "StatusDescriptionText")
	filingStatusCode  = filing.Q(filing.NSECF, "FilingStatusCode")
)

// NotificationException is reported downstream when a callback carries no
// review filing message.
const NotificationException = "Exception:ReviewFilingNotification - Service error processing ofs notify response filing json"

// NotificationResult is the outcome of one callback.
type NotificationResult struct {
	ID        string
	Accepted  bool
	DocketID  string
	AuditPath string
}

// NotificationReceiver maps asynchronous review callbacks to filing responses.
type NotificationReceiver struct {
	publisher *ResponsePublisher
	archive   *archive.Writer
	courtID   string
	logger    *slog.Logger
}

func NewNotificationReceiver(publisher *ResponsePublisher, audit *archive.Writer, courtID string, logger *slog.Logger) *NotificationReceiver {
	return &NotificationReceiver{publisher: publisher, archive: audit, courtID: courtID, logger: logger}
}

// Receive handles one callback document. An error means raw is not XML; the
// backend's delivery is acknowledged regardless of the gateway outcome. The
// raw callback is always archived, keyed by docket id when one was found.
func (r *NotificationReceiver) Receive(ctx context.Context, raw []byte) (res NotificationResult, err error) {
	res.ID = uuid.NewString()
	logCtx := r.logger.With("notificationId", res.ID)

	defer func() {
		id := "Notify"
		if res.DocketID != "" {
			id = res.DocketID + "-Notify"
		}
		if !r.archive.Enabled() {
			return
		}
		path, werr := r.archive.Write(ctx, id, raw)
		if werr != nil {
			logCtx.Error("Failed to write notification audit copy.", "error", werr)
			return
		}
		res.AuditPath = path
	}()

	doc, err := filing.Parse("notification", raw)
	if err != nil {
		logCtx.Error("Rejected notification that is not XML.", "error", err)
		return res, fmt.Errorf("failed to read notification: %w", err)
	}

	resp := r.MapNotification(doc)
	res.DocketID = resp.CaseDocketID
	logCtx.Info("Processing review filing notification.",
		"caseDocketId", resp.CaseDocketID,
		"caseTrackingId", resp.CaseTrackingID,
		"caseFilingId", resp.CaseFilingID,
		"filingStatusCode", resp.FilingStatusCode)

	reply, delivered := r.publisher.Deliver(ctx, resp)
	res.Accepted = delivered && reply.Accepted()
	return res, nil
}

// MapNotification builds the asynchronous filing response for a callback.
func (r *NotificationReceiver) MapNotification(doc *filing.Document) models.FilingResponse {
	resp := models.NewFilingResponse("", false)
	msg := doc.First(callbackMessage)
	if msg == nil {
		resp.OrganizationID = r.courtID
		resp.Exception = NotificationException
		return *resp
	}

	receipt := filing.NewReceipt(filing.FromElement("callback", msg))
	resp.CaseFilingID = receipt.FilingID()
	resp.EnvelopeID = receipt.EnvelopeID()
	resp.CaseFilingDate = trimmed(firstChild(filing.Child(msg, documentFiledDate)))

	c := filing.Child(msg, criminalCase)
	if c == nil {
		c = filing.Child(msg, civilCase)
	}
	resp.CaseTitleText = trimmed(filing.Child(c, caseTitleText))
	resp.CaseTrackingID = trimmed(filing.Child(c, caseTrackingID))
	resp.CaseDocketID = trimmed(filing.Child(c, caseDocketID))
	resp.OrganizationID = trimmed(filing.Child(filing.Child(filing.Child(filing.Child(c, justiceCaseAug), caseCourt), orgIdentification), identificationID))

	status := filing.Child(msg, filingStatus)
	resp.FilingStatusText = trimmed(filing.Child(status, statusDescription))
	resp.FilingStatusCode = trimmed(filing.Child(status, filingStatusCode))
	return *resp
}

func firstChild(e *etree.Element) *etree.Element {
	if e == nil || len(e.ChildElements()) == 0 {
		return nil
	}
	return e.ChildElements()[0]
}

func trimmed(e *etree.Element) string {
	return strings.TrimSpace(filing.Value(e))
}

// NewNotificationFunction builds a receiver for the serverless listener from
// the environment. Audit copies go to NOTIFY_REVIEW_DIR and, when
// ARCHIVE_BUCKET is set, to that bucket as well.
func NewNotificationFunction(ctx context.Context) (*NotificationReceiver, error) {
	gwConfig := gateway.Config{
		URL:         gcp.GetEnv("GATEWAY_URL", ""),
		HealthURL:   gcp.GetEnv("GATEWAY_HEALTH_URL", ""),
		Login:       gcp.GetEnv("GATEWAY_LOGIN", ""),
		Password:    gcp.GetEnv("GATEWAY_PASSWORD", ""),
		CheckHealth: gcp.GetEnv("GATEWAY_CHECK_HEALTH", "false") == "true",
	}
	if gwConfig.URL == "" {
		return nil, fmt.Errorf("GATEWAY_URL environment variable must be set")
	}
	courtID := gcp.GetEnv("COURT_ID", "")
	projectID := gcp.GetEnv("PROJECT_ID", "")
	logger := slog.Default()

	gw, err := gateway.NewClient(gwConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway client: %w", err)
	}

	var mirror archive.Mirror
	if bucket := gcp.GetEnv("ARCHIVE_BUCKET", ""); bucket != "" {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Storage client: %w", err)
		}
		mirror = gcp.NewBucketMirror(storageClient, bucket, "notify")
	}
	audit := archive.NewWriter(gcp.GetEnv("NOTIFY_REVIEW_DIR", filepath.Join(os.TempDir(), "notifyReview")), mirror, logger)

	var workflow WorkflowStarter
	if workflowID := gcp.GetEnv("WORKFLOW_ID", ""); workflowID != "" {
		trigger, err := gcp.NewWorkflowTrigger(ctx, projectID, gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"), workflowID)
		if err != nil {
			return nil, fmt.Errorf("failed to create workflow trigger: %w", err)
		}
		workflow = trigger
	}

	publisher := NewResponsePublisher(gw, nil, workflow, courtID, logger)
	slog.Info("Notification receiver initialized.", "courtId", courtID, "workflow", workflow != nil)
	return NewNotificationReceiver(publisher, audit, courtID, logger), nil
}
