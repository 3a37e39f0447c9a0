package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/efilingbridge/internal/archive"
	"github.com/Lllllllleong/efilingbridge/internal/efm"
)

// CycleRunner runs one poll cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (CycleReport, error)
}

// Cleaner runs one retention pass.
type Cleaner interface {
	Run(ctx context.Context) (int, error)
}

// CodeRefresher reloads the court code tables.
type CodeRefresher interface {
	RefreshCodes(ctx context.Context) error
}

// SchedulerConfig sets the poll interval and the daily code refresh window.
// A negative HourToCheckCodes disables the refresh.
type SchedulerConfig struct {
	Interval         time.Duration
	HourToCheckCodes int
	MinutesFrom      int
	MinutesTo        int
}

// Scheduler fires poll cycles on a fixed interval. A cycle always completes
// before the next one can start.
type Scheduler struct {
	config    SchedulerConfig
	cycles    CycleRunner
	cleaner   Cleaner
	refresher CodeRefresher
	logger    *slog.Logger

	lastRefresh string
}

// NewScheduler builds a scheduler. cleaner and refresher may be nil.
func NewScheduler(config SchedulerConfig, cycles CycleRunner, cleaner Cleaner, refresher CodeRefresher, logger *slog.Logger) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = 15 * time.Minute
	}
	return &Scheduler{config: config, cycles: cycles, cleaner: cleaner, refresher: refresher, logger: logger}
}

// Run runs a first cycle immediately and then one per interval until ctx is
// done. An unexpected failure inside a tick stops the scheduler and is
// returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started.", "interval", s.config.Interval.String())
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	now := time.Now()
	for {
		if err := s.Tick(ctx, now); err != nil {
			s.logger.Error("Scheduler stopped.", "error", err)
			return err
		}
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler shutting down.")
			return nil
		case now = <-ticker.C:
		}
	}
}

// Tick does the work of one timer event: the code refresh when inside its
// window, one poll cycle and one retention pass.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected scheduler failure: %v", r)
		}
	}()

	if s.refresher != nil && s.InRefreshWindow(now) {
		day := now.Format(time.DateOnly)
		if s.lastRefresh != day {
			s.lastRefresh = day
			if err := s.refresher.RefreshCodes(ctx); err != nil {
				s.logger.Error("Code refresh failed.", "error", err)
			} else {
				s.logger.Info("Court codes refreshed.")
			}
		}
	}

	if _, err := s.cycles.RunCycle(ctx); err != nil {
		s.logger.Error("Poll cycle ended early.", "error", err)
	}

	if s.cleaner != nil {
		if _, err := s.cleaner.Run(ctx); err != nil {
			s.logger.Error("Retention cleanup failed.", "error", err)
		}
	}
	return nil
}

// InRefreshWindow reports whether now falls in the daily code refresh window.
func (s *Scheduler) InRefreshWindow(now time.Time) bool {
	if s.config.HourToCheckCodes < 0 {
		return false
	}
	return now.Hour() == s.config.HourToCheckCodes &&
		now.Minute() >= s.config.MinutesFrom &&
		now.Minute() <= s.config.MinutesTo
}

// PolicyRefresher refreshes code tables by pulling each court's policy and
// archiving it for the operators.
type PolicyRefresher struct {
	client   efm.Client
	email    string
	password string
	courts   []string
	archive  *archive.Writer
	logger   *slog.Logger
}

func NewPolicyRefresher(client efm.Client, email, password string, courts []string, audit *archive.Writer, logger *slog.Logger) *PolicyRefresher {
	return &PolicyRefresher{client: client, email: email, password: password, courts: courts, archive: audit, logger: logger}
}

// RefreshCodes fetches every court's policy. A single court failing does
// not stop the others; the last failure is returned.
func (p *PolicyRefresher) RefreshCodes(ctx context.Context) error {
	if len(p.courts) == 0 {
		return nil
	}
	s, err := p.client.Authenticate(ctx, p.email, p.password)
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	var lastErr error
	for _, court := range p.courts {
		logCtx := p.logger.With("court", court)
		policy, err := p.client.GetPolicy(ctx, s, court)
		if err != nil {
			logCtx.Error("Failed to get court policy.", "error", err)
			lastErr = fmt.Errorf("failed to get policy for %s: %w", court, err)
			continue
		}
		if !p.archive.Enabled() {
			continue
		}
		data, err := policy.Bytes()
		if err != nil {
			logCtx.Warn("Failed to encode court policy.", "error", err)
			continue
		}
		path, err := p.archive.Write(ctx, court+"-Policy", data)
		if err != nil {
			logCtx.Warn("Failed to archive court policy.", "error", err)
			continue
		}
		logCtx.Info("Court policy archived.", "path", path)
	}
	return lastErr
}
