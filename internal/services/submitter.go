package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Lllllllleong/efilingbridge/internal/efm"
	"github.com/Lllllllleong/efilingbridge/internal/filing"
	"github.com/Lllllllleong/efilingbridge/internal/models"
	"github.com/google/uuid"
)

// MalformedReceipt is reported when the backend's receipt has no Error section.
const MalformedReceipt = "Invalid Ofs MessageReceipt xml, no <Error> section found"

var (
	sendingMDELocationID = filing.Q(filing.NSECF, "SendingMDELocationID")
	paymentID            = filing.Q(filing.NSUBLBasic, "PaymentID")
	feesAmount           = "FeesCalculationAmount"
)

// SubmitterConfig holds the queue layout and per-cycle credentials.
type SubmitterConfig struct {
	QueueDir          string
	SuccessDir        string
	FailedDir         string
	CourtID           string
	NotifyCallbackURL string
	Email             string
	Password          string
	// SelfTest detaches service contacts right after attaching them.
	SelfTest bool
	// RejectInvalidAttachments fails filings whose embedded PDFs do not validate.
	RejectInvalidAttachments bool
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	CycleID   string
	Succeeded int
	Failed    int
}

// Submitter drains the queue directory: each filing is resolved against the
// backend, submitted, reported downstream and moved to a terminal directory.
type Submitter struct {
	config    SubmitterConfig
	client    efm.Client
	entities  *EntityResolver
	cases     *CaseResolver
	publisher *ResponsePublisher
	ledger    Ledger
	logger    *slog.Logger
	now       func() time.Time
}

// NewSubmitter builds the orchestrator. ledger may be nil.
func NewSubmitter(config SubmitterConfig, client efm.Client, publisher *ResponsePublisher, ledger Ledger, logger *slog.Logger) (*Submitter, error) {
	if config.QueueDir == "" || config.SuccessDir == "" || config.FailedDir == "" {
		return nil, fmt.Errorf("queue, success and failed directories must be set")
	}
	if ledger == nil {
		ledger = NopLedger{}
	}
	cases := NewCaseResolver(client, client, logger)
	cases.SelfTest = config.SelfTest
	return &Submitter{
		config:    config,
		client:    client,
		entities:  NewEntityResolver(client, logger),
		cases:     cases,
		publisher: publisher,
		ledger:    ledger,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// RunCycle processes every filing present in the queue when the cycle
// starts, one at a time. It fails only when the backend session cannot be
// opened, in which case every filing stays queued.
func (o *Submitter) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{CycleID: uuid.NewString()}
	logCtx := o.logger.With("cycleId", report.CycleID)

	items, err := o.pending()
	if err != nil {
		logCtx.Error("Failed to list queue.", "queueDir", o.config.QueueDir, "error", err)
		return report, err
	}
	if len(items) == 0 {
		logCtx.Debug("Queue is empty.")
		return report, nil
	}
	logCtx.Info("Starting poll cycle.", "queued", len(items))

	session, err := o.client.Authenticate(ctx, o.config.Email, o.config.Password)
	if err != nil {
		logCtx.Error("Failed to authenticate, filings stay queued.", "error", err)
		return report, fmt.Errorf("failed to authenticate: %w", err)
	}
	user, err := o.client.GetFirmUser(ctx, session)
	if err != nil {
		logCtx.Error("Failed to load firm user, filings stay queued.", "error", err)
		return report, fmt.Errorf("failed to get firm user: %w", err)
	}
	logCtx.Info("Backend session opened.", "userId", user.UserID, "firmId", user.FirmID)

	for _, item := range items {
		if ctx.Err() != nil {
			logCtx.Warn("Poll cycle cancelled, remaining filings stay queued.", "error", ctx.Err())
			break
		}
		// An item that has started runs to its terminal move; cancellation
		// only stops the cycle between items.
		switch o.processItem(context.WithoutCancel(ctx), report.CycleID, session, user, item) {
		case models.StateSucceeded:
			report.Succeeded++
		default:
			report.Failed++
		}
	}
	logCtx.Info("Poll cycle complete.", "succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

// pending lists the queued .xml files in name order.
func (o *Submitter) pending() ([]models.QueueItem, error) {
	entries, err := os.ReadDir(o.config.QueueDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read queue dir: %w", err)
	}
	var items []models.QueueItem
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".xml") {
			continue
		}
		items = append(items, models.QueueItem{Path: filepath.Join(o.config.QueueDir, e.Name()), State: models.StateQueued})
	}
	return items, nil
}

// processItem takes one filing to a terminal state. The response is
// published exactly once and the file is moved exactly once, whatever happens
// in between.
func (o *Submitter) processItem(ctx context.Context, cycleID string, s models.Session, user models.FirmUser, item models.QueueItem) models.State {
	logCtx := o.logger.With("cycleId", cycleID, "queueFile", item.Name())
	logCtx.Info("Processing filing.")

	rec := models.FilingRecord{FileName: item.Name(), CycleID: cycleID, Status: string(models.StateProcessing)}
	if hash, err := calculateFileHash(item.Path); err != nil {
		logCtx.Warn("Failed to calculate file hash.", "error", err)
	} else {
		rec.FileHash = hash
	}
	o.track(ctx, logCtx, rec)

	var pub Publication
	accepted, err := o.submitSafely(ctx, s, user, item, &pub, logCtx)

	item.State = models.StateSucceeded
	if err != nil || !accepted {
		item.State = models.StateFailed
	}
	if err != nil {
		logCtx.Error("Filing failed.", "kind", models.KindOf(err), "error", err)
		if pub.Exception == "" {
			pub.Exception = models.Message(err)
		}
		rec.ErrorKind, rec.ErrorDetails = string(models.KindOf(err)), err.Error()
	}

	if !o.publishSafely(ctx, pub, logCtx) {
		logCtx.Warn("Filing response was not delivered, audit copy is the recovery path.")
	}

	dest := o.config.FailedDir
	if item.State == models.StateSucceeded {
		dest = o.config.SuccessDir
	}
	moved, err := moveFile(item.Path, dest)
	if err != nil {
		logCtx.Error("Failed to move filing out of the queue.", "destination", dest, "error", err)
	} else {
		logCtx.Info("Filing moved.", "state", item.State, "path", moved)
	}

	rec.Status = string(item.State)
	rec.DocketNumber = pub.DocketNumber
	rec.CaseTrackingID = pub.CaseTrackingID
	if pub.Result != nil {
		rec.FilingID = filing.NewReceipt(pub.Result).FilingID()
	}
	rec.UpdatedAt = o.now()
	o.track(ctx, logCtx, rec)
	return item.State
}

// submitSafely turns a panic anywhere in submit into an Unexpected failure.
func (o *Submitter) submitSafely(ctx context.Context, s models.Session, user models.FirmUser, item models.QueueItem, pub *Publication, logCtx *slog.Logger) (accepted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			accepted = false
			err = models.Errorf(models.KindUnexpected, "processFiling", "unexpected failure: %v", r)
		}
	}()
	return o.submit(ctx, s, user, item, pub, logCtx)
}

// publishSafely reports a panic while publishing as an undelivered response
// so the filing still reaches its terminal directory.
func (o *Submitter) publishSafely(ctx context.Context, pub Publication, logCtx *slog.Logger) (delivered bool) {
	defer func() {
		if r := recover(); r != nil {
			logCtx.Error("Unexpected failure while publishing filing response.", "error", r)
			delivered = false
		}
	}()
	return o.publisher.Publish(ctx, pub)
}

// submit resolves and submits one filing, filling pub as it learns more.
// It reports whether the backend accepted the filing.
func (o *Submitter) submit(ctx context.Context, s models.Session, user models.FirmUser, item models.QueueItem, pub *Publication, logCtx *slog.Logger) (bool, error) {
	doc, err := filing.Load(item.Path)
	if err != nil {
		return false, models.Wrap(models.KindValidation, "loadFiling", err)
	}
	if n := filing.Normalize(doc); n > 0 {
		logCtx.Debug("Absence markers added.", "count", n)
	}

	cfg, err := filing.ParseConfig(doc)
	if err != nil {
		return false, models.Wrap(models.KindValidation, "parseConfig", err)
	}
	filing.RemoveConfig(doc)
	pub.SubmitDocRefID = cfg.FilingDocID
	pub.DocketNumber = cfg.DocketNumber
	pub.FiledDocuments = filing.FiledDocuments(doc)
	defendant := filing.Defendant(doc)
	pub.PartyName = defendant.Sorted()
	logCtx = logCtx.With("submitDocRefId", cfg.FilingDocID, "docketNumber", cfg.DocketNumber)

	if err := o.checkAttachments(doc, logCtx); err != nil {
		return false, err
	}

	court := cfg.CourtLocation
	if court == "" {
		court = o.config.CourtID
	}
	if _, err := o.client.GetPolicy(ctx, s, court); err != nil {
		logCtx.Warn("Failed to load court policy.", "court", court, "error", err)
	}

	var patches filing.PatchList

	attorneys, err := o.client.GetAttorneys(ctx, s)
	if err != nil {
		return false, models.Wrap(models.KindTransport, "GetAttorneyList", err)
	}
	atty, err := o.entities.ResolveAttorney(ctx, s, cfg.Attorney, attorneys)
	if err != nil {
		return false, err
	}
	patches.Add(AttorneyPatches(atty.AttorneyID)...)

	firmID := atty.FirmID
	if firmID == "" {
		firmID = user.FirmID
	}
	known, err := o.client.GetServiceContacts(ctx, s)
	if err != nil {
		logCtx.Warn("Failed to load firm service contacts.", "error", err)
	}
	contacts := o.entities.ResolveServiceContacts(ctx, s, firmID, cfg.ServiceContacts, known)
	patches.Add(ContactPatches(contacts)...)

	accounts, err := o.client.GetPaymentAccounts(ctx, s)
	switch {
	case err != nil:
		logCtx.Warn("Failed to load payment accounts.", "error", err)
	case len(accounts) == 0:
		logCtx.Warn("Firm has no payment account.")
	default:
		patches.Add(filing.Patch{Source: "paymentAccountID", Field: paymentID, Value: accounts[0].PaymentAccountID, Target: filing.FirstMatch})
	}

	if o.config.NotifyCallbackURL != "" {
		patches.Add(filing.Patch{
			Source:   "notifyCallbackURL",
			Scope:    sendingMDELocationID,
			Field:    identificationID,
			Value:    o.config.NotifyCallbackURL,
			Target:   filing.FirstMatch,
			Required: true,
		})
	}

	if cfg.HasDocket() {
		ref, err := o.cases.ResolveCaseTracking(ctx, s, court, cfg.DocketNumber, defendant)
		if err != nil {
			return false, err
		}
		pub.CaseTitle = ref.Title
		pub.CaseTrackingID = ref.TrackingID
		patches.Add(CasePatches(ref)...)
		o.cases.AttachServiceContacts(ctx, s, ref.TrackingID, contacts)
	} else {
		logCtx.Info("No docket number, submitting as a new case.")
	}

	final, err := patches.Apply(doc)
	if err != nil {
		return false, models.Wrap(models.KindValidation, "applyPatches", err)
	}

	if fees, err := o.client.GetFeesCalculation(ctx, s, final); err != nil {
		logCtx.Warn("Fee calculation failed.", "error", err)
	} else {
		logCtx.Info("Fees calculated.", "amount", strings.TrimSpace(filing.Value(filing.FirstLocal(fees.Root(), feesAmount))))
	}

	result, err := o.client.ReviewFiling(ctx, s, final)
	if err != nil {
		return false, models.Wrap(models.KindTransport, "ReviewFiling", err)
	}
	pub.Result = result

	receipt := filing.NewReceipt(result)
	o.lookupStatus(ctx, s, court, receipt, pub, logCtx)

	switch receipt.Classify() {
	case filing.OutcomeAccepted:
		logCtx.Info("Filing accepted.", "filingId", receipt.FilingID(), "envelopeId", receipt.EnvelopeID())
		return true, nil
	case filing.OutcomeRejected:
		logCtx.Warn("Filing rejected.", "errors", receipt.Errors())
		return false, nil
	default:
		return false, models.Errorf(models.KindValidation, "ReviewFiling", MalformedReceipt)
	}
}

func (o *Submitter) checkAttachments(doc *filing.Document, logCtx *slog.Logger) error {
	attachments, err := filing.InspectAttachments(doc)
	if err != nil {
		logCtx.Warn("Failed to inspect attachments.", "error", err)
		return nil
	}
	for _, a := range attachments {
		if a.Err == nil {
			logCtx.Debug("Attachment checked.", "controlId", a.ControlID, "pdf", a.PDF, "pages", a.Pages)
			continue
		}
		logCtx.Warn("Attachment is invalid.", "controlId", a.ControlID, "error", a.Err)
		if o.config.RejectInvalidAttachments {
			return models.Errorf(models.KindValidation, "inspectAttachments", "invalid attachment %s: %v", a.ControlID, a.Err)
		}
	}
	return nil
}

// lookupStatus queries the status of every filing id in the receipt. The
// case title falls back to the one the backend reports there.
func (o *Submitter) lookupStatus(ctx context.Context, s models.Session, court string, receipt filing.Receipt, pub *Publication, logCtx *slog.Logger) {
	for _, id := range receipt.FilingIDs() {
		status, err := o.client.GetFilingStatus(ctx, s, court, id)
		if err != nil {
			logCtx.Warn("Failed to get filing status.", "filingId", id, "error", err)
			continue
		}
		if pub.CaseTitle == "" {
			pub.CaseTitle = strings.TrimSpace(filing.Value(filing.FirstLocal(status.Root(), "CaseTitleText")))
		}
	}
}

func (o *Submitter) track(ctx context.Context, logCtx *slog.Logger, rec models.FilingRecord) {
	defer func() {
		if r := recover(); r != nil {
			logCtx.Error("Unexpected failure while updating filing ledger.", "status", rec.Status, "error", r)
		}
	}()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = o.now()
	}
	if err := o.ledger.Track(ctx, rec); err != nil {
		logCtx.Warn("Failed to update filing ledger.", "status", rec.Status, "error", err)
	}
}

// moveFile moves src into dir, replacing any file of the same name. A
// rename across devices falls back to copy and remove.
func moveFile(src, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	dst := filepath.Join(dir, filepath.Base(src))
	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}
	if err := copyFile(src, dst); err != nil {
		return "", err
	}
	if err := os.Remove(src); err != nil {
		return dst, fmt.Errorf("failed to remove %s after copy: %w", src, err)
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
