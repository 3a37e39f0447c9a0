package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/efilingbridge/internal/archive"
	"github.com/Lllllllleong/efilingbridge/internal/config"
	"github.com/Lllllllleong/efilingbridge/internal/efm"
	"github.com/Lllllllleong/efilingbridge/internal/gateway"
	"github.com/Lllllllleong/efilingbridge/internal/gcp"
	"github.com/Lllllllleong/efilingbridge/internal/httpapi"
	"github.com/Lllllllleong/efilingbridge/internal/services"
)

// Runtime holds the wired filing host.
type Runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	submitter  *services.Submitter
	receiver   *services.NotificationReceiver
	cleaner    *services.RetentionCleaner
	refresher  *services.PolicyRefresher
	httpServer *http.Server
	closers    []io.Closer
}

// newLogger builds the JSON logger at the configured level. When log.dir is
// set, records are also appended to log.dir/log.file.
func newLogger(cfg config.LogConfig) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	var out io.Writer = os.Stdout
	var closer io.Closer
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log dir %s: %w", cfg.Dir, err)
		}
		name := cfg.File
		if name == "" {
			name = "filing-host.log"
		}
		f, err := os.OpenFile(filepath.Join(cfg.Dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closer = f
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})), closer, nil
}

// NewRuntime wires every component from cfg. Cloud features are only
// connected when their settings are present.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	r := &Runtime{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			r.close()
		}
	}()

	client, err := efm.NewSOAPClient(efm.Config{
		UserServiceURL:  cfg.EFM.UserServiceURL,
		FirmServiceURL:  cfg.EFM.FirmServiceURL,
		CourtRecordURL:  cfg.EFM.RecordServiceURL,
		FilingReviewURL: cfg.EFM.FilingServiceURL,
		PFXPath:         cfg.EFM.PFXPath,
		PFXPassword:     cfg.EFM.PFXPassword,
		Timeout:         cfg.EFM.Timeout(),
		MaxRetries:      cfg.EFM.MaxRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create EFM client: %w", err)
	}

	gw, err := gateway.NewClient(gateway.Config{
		URL:         cfg.Gateway.URL,
		HealthURL:   cfg.Gateway.HealthURL,
		Login:       cfg.Gateway.Login,
		Password:    cfg.Gateway.Password,
		CheckHealth: cfg.Gateway.CheckHealth,
		Timeout:     cfg.Gateway.Timeout(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway client: %w", err)
	}

	var submitMirror, notifyMirror archive.Mirror
	if cfg.GCP.ArchiveBucket != "" {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Storage client: %w", err)
		}
		r.closers = append(r.closers, storageClient)
		submitMirror = gcp.NewBucketMirror(storageClient, cfg.GCP.ArchiveBucket, "submit")
		notifyMirror = gcp.NewBucketMirror(storageClient, cfg.GCP.ArchiveBucket, "notify")
	}
	submitAudit := archive.NewWriter(cfg.SubmitReviewDir, submitMirror, logger)
	notifyAudit := archive.NewWriter(cfg.NotifyReviewDir, notifyMirror, logger)

	var ledger services.Ledger
	if cfg.GCP.LedgerCollection != "" && cfg.GCP.ProjectID != "" {
		fsClient, err := gcp.NewFirestoreClient(ctx, cfg.GCP.ProjectID)
		if err != nil {
			return nil, err
		}
		firestoreLedger := services.NewFirestoreLedger(fsClient, cfg.GCP.LedgerCollection)
		r.closers = append(r.closers, firestoreLedger)
		ledger = firestoreLedger
	}

	var workflow services.WorkflowStarter
	if cfg.GCP.WorkflowID != "" {
		trigger, err := gcp.NewWorkflowTrigger(ctx, cfg.GCP.ProjectID, cfg.GCP.WorkflowLocation, cfg.GCP.WorkflowID)
		if err != nil {
			return nil, fmt.Errorf("failed to create workflow trigger: %w", err)
		}
		r.closers = append(r.closers, trigger)
		workflow = trigger
	}

	publisher := services.NewResponsePublisher(gw, submitAudit, workflow, cfg.CourtID, logger)
	r.submitter, err = services.NewSubmitter(services.SubmitterConfig{
		QueueDir:                 cfg.QueueDir,
		SuccessDir:               cfg.SuccessDir,
		FailedDir:                cfg.FailedDir,
		CourtID:                  cfg.CourtID,
		NotifyCallbackURL:        cfg.NotifyCallbackURL,
		Email:                    cfg.EFM.Email,
		Password:                 cfg.EFM.Password,
		SelfTest:                 cfg.AttachDetachSelfTest,
		RejectInvalidAttachments: cfg.Attachments.RejectInvalid,
	}, client, publisher, ledger, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create submitter: %w", err)
	}

	notifyPublisher := services.NewResponsePublisher(gw, nil, workflow, cfg.CourtID, logger)
	r.receiver = services.NewNotificationReceiver(notifyPublisher, notifyAudit, cfg.CourtID, logger)
	r.cleaner = services.NewRetentionCleaner(retentionRules(cfg), logger)
	r.refresher = services.NewPolicyRefresher(client, cfg.EFM.Email, cfg.EFM.Password, cfg.CourtLocations, submitAudit, logger)

	handler := httpapi.NewHandler(r.receiver, r.ready, logger)
	r.httpServer = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ok = true
	return r, nil
}

func retentionRules(cfg *config.Config) []services.RetentionRule {
	var rules []services.RetentionRule
	for _, dir := range []string{cfg.SubmitReviewDir, cfg.NotifyReviewDir} {
		if dir != "" {
			rules = append(rules, services.RetentionRule{Root: dir, Days: cfg.Retention.MessageDays})
		}
	}
	if cfg.Log.Dir != "" {
		rules = append(rules, services.RetentionRule{Root: cfg.Log.Dir, Days: cfg.Retention.LogDays})
	}
	return rules
}

// ready fails while the queue directory is unreachable.
func (r *Runtime) ready(ctx context.Context) error {
	info, err := os.Stat(r.cfg.QueueDir)
	if err != nil {
		return fmt.Errorf("queue dir unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("queue dir %s is not a directory", r.cfg.QueueDir)
	}
	return nil
}

// Run serves the notification listener and drives the scheduler until a
// signal arrives or either of them fails.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.close()

	scheduler := services.NewScheduler(services.SchedulerConfig{
		Interval:         r.cfg.Schedule.PollingInterval(),
		HourToCheckCodes: r.cfg.Schedule.HourToCheckCodes,
		MinutesFrom:      r.cfg.Schedule.MinutesFrom,
		MinutesTo:        r.cfg.Schedule.MinutesTo,
	}, r.submitter, r.cleaner, r.codeRefresher(), r.logger)

	errCh := make(chan error, 2)
	schedulerDone := make(chan struct{})
	go func() {
		r.logger.Info("HTTP server started.", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		defer close(schedulerDone)
		if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("scheduler: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("Shutdown signal received.")
	case runErr = <-errCh:
		r.logger.Error("Filing host failure.", "error", runErr)
	}

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("HTTP server shutdown failed.", "error", err)
	}
	<-schedulerDone
	return runErr
}

// codeRefresher returns nil when there are no courts to refresh.
func (r *Runtime) codeRefresher() services.CodeRefresher {
	if r.cfg.Schedule.HourToCheckCodes < 0 || len(r.cfg.CourtLocations) == 0 {
		return nil
	}
	return r.refresher
}

// Poll runs a single poll cycle.
func (r *Runtime) Poll(ctx context.Context) (services.CycleReport, error) {
	defer r.close()
	return r.submitter.RunCycle(ctx)
}

// Cleanup runs a single retention pass.
func (r *Runtime) Cleanup(ctx context.Context) (int, error) {
	defer r.close()
	return r.cleaner.Run(ctx)
}

func (r *Runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			r.logger.Warn("Failed to close client.", "error", err)
		}
	}
	r.closers = nil
}

// courtList is used in startup logs.
func courtList(courts []string) string {
	if len(courts) == 0 {
		return "-"
	}
	return strings.Join(courts, ";")
}
