package services

import (
	"context"
	"log/slog"

	"github.com/Lllllllleong/efilingbridge/internal/archive"
	"github.com/Lllllllleong/efilingbridge/internal/filing"
	"github.com/Lllllllleong/efilingbridge/internal/gateway"
	"github.com/Lllllllleong/efilingbridge/internal/models"
)

// Sender delivers a filing response to the downstream gateway.
type Sender interface {
	Send(ctx context.Context, resp models.FilingResponse) (gateway.Reply, error)
}

// WorkflowStarter starts a downstream workflow with the published response.
type WorkflowStarter interface {
	Start(ctx context.Context, payload any) (string, error)
}

// Publication is everything known about a finished submission.
type Publication struct {
	SubmitDocRefID string
	// Result is the backend's receipt; nil when the filing never reached it.
	Result         *filing.Document
	CaseTitle      string
	CaseTrackingID string
	DocketNumber   string
	FiledDocuments []string
	PartyName      string
	Exception      string
}

// ResponsePublisher reports submission results downstream and keeps an
// audit copy of every backend receipt.
type ResponsePublisher struct {
	gateway  Sender
	archive  *archive.Writer
	workflow WorkflowStarter
	courtID  string
	logger   *slog.Logger
}

// NewResponsePublisher builds a publisher. archive and workflow may be nil.
func NewResponsePublisher(gw Sender, audit *archive.Writer, workflow WorkflowStarter, courtID string, logger *slog.Logger) *ResponsePublisher {
	return &ResponsePublisher{gateway: gw, archive: audit, workflow: workflow, courtID: courtID, logger: logger}
}

// BuildSubmissionResponse maps a publication to the downstream response.
// A receipt without an exception yields a full response; anything else
// yields an exception-only response.
func (p *ResponsePublisher) BuildSubmissionResponse(pub Publication) models.FilingResponse {
	resp := models.NewFilingResponse(pub.SubmitDocRefID, true)
	if pub.Result == nil || pub.Exception != "" {
		exception := pub.Exception
		if exception == "" {
			exception = "Exception:SendEProsResponseMessage - Service error processing ofs submit response filing json"
		}
		resp.OrganizationID = p.courtID
		resp.CaseDocketID = pub.DocketNumber
		resp.Exception = models.StripBackslashes(exception)
		return *resp
	}

	receipt := filing.NewReceipt(pub.Result)
	resp.CaseFilingID = receipt.FilingID()
	resp.EnvelopeID = receipt.EnvelopeID()
	if ids := receipt.FilingIDs(); len(ids) > 0 {
		resp.FilingDocumentGUIDs = ids
	}
	if statuses := receipt.Statuses(); len(statuses) > 0 {
		resp.StatusErrors = make([]models.StatusEntry, 0, len(statuses))
		for _, s := range statuses {
			resp.StatusErrors = append(resp.StatusErrors, models.StatusEntry{
				StatusCode: s.Code,
				StatusText: models.StripBackslashes(s.Text),
			})
		}
	}
	resp.CaseTitleText = pub.CaseTitle
	resp.CaseTrackingID = pub.CaseTrackingID
	resp.CaseDocketID = pub.DocketNumber
	resp.DefendantFullName = pub.PartyName
	if pub.FiledDocuments != nil {
		resp.FilingDocuments = pub.FiledDocuments
	}
	return *resp
}

// Publish archives the receipt, when there is one, and delivers the
// response. It reports whether the gateway received the response; a
// gateway that received but rejected it still counts as delivered.
func (p *ResponsePublisher) Publish(ctx context.Context, pub Publication) bool {
	logCtx := p.logger.With("submitDocRefId", pub.SubmitDocRefID, "docketNumber", pub.DocketNumber)

	if pub.Result != nil {
		id := "Submit"
		if pub.SubmitDocRefID != "" {
			id = pub.SubmitDocRefID + "-Submit"
		}
		p.saveAudit(ctx, logCtx, id, pub.Result)
	}

	_, delivered := p.Deliver(ctx, p.BuildSubmissionResponse(pub))
	return delivered
}

// Deliver sends resp to the gateway and, when configured, starts the
// downstream workflow with it. The workflow outcome never affects the result.
func (p *ResponsePublisher) Deliver(ctx context.Context, resp models.FilingResponse) (gateway.Reply, bool) {
	logCtx := p.logger.With("submitDocRefId", resp.Submitter.SubmitDocRefID, "reviewFilingResponse", resp.IsSynchronous)

	if p.workflow != nil {
		execution, err := p.workflow.Start(ctx, map[string]any{"rfResponse": resp})
		if err != nil {
			logCtx.Error("Failed to start response workflow.", "error", err)
		} else {
			logCtx.Info("Response workflow started.", "execution", execution)
		}
	}

	reply, err := p.gateway.Send(ctx, resp)
	if err != nil {
		logCtx.Error("Failed to send filing response to gateway.", "error", err)
		return reply, false
	}
	if !reply.Accepted() {
		logCtx.Error("Gateway rejected filing response.", "code", reply.Code, "status", reply.Status,
			"clientMessages", reply.ClientMessages, "serverMessages", reply.ServerMessages)
		return reply, true
	}
	logCtx.Info("Filing response sent to gateway.", "code", reply.Code, "status", reply.Status)
	return reply, true
}

func (p *ResponsePublisher) saveAudit(ctx context.Context, logCtx *slog.Logger, id string, d *filing.Document) string {
	if !p.archive.Enabled() {
		return ""
	}
	data, err := d.Bytes()
	if err != nil {
		logCtx.Error("Failed to encode audit copy.", "error", err)
		return ""
	}
	path, err := p.archive.Write(ctx, id, data)
	if err != nil {
		logCtx.Error("Failed to write audit copy.", "error", err)
		return ""
	}
	logCtx.Info("Audit copy written.", "path", path)
	return path
}
