package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// RetentionRule purges files under Root older than Days. Days <= 0 disables it.
type RetentionRule struct {
	Root string
	Days int
}

// RetentionCleaner removes aged files from the audit and log directories.
type RetentionCleaner struct {
	rules  []RetentionRule
	logger *slog.Logger
	now    func() time.Time
}

func NewRetentionCleaner(rules []RetentionRule, logger *slog.Logger) *RetentionCleaner {
	return &RetentionCleaner{rules: rules, logger: logger, now: time.Now}
}

// Run applies every rule, walking the roots in parallel. It returns the
// number of files removed. A missing root is not an error.
func (c *RetentionCleaner) Run(ctx context.Context) (int, error) {
	var removed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, rule := range c.rules {
		if rule.Root == "" || rule.Days <= 0 {
			continue
		}
		g.Go(func() error {
			n, err := c.purge(ctx, rule)
			removed.Add(int64(n))
			if err != nil {
				return fmt.Errorf("failed to purge %s: %w", rule.Root, err)
			}
			if n > 0 {
				c.logger.Info("Retention purge complete.", "root", rule.Root, "days", rule.Days, "removed", n)
			}
			return nil
		})
	}
	err := g.Wait()
	return int(removed.Load()), err
}

func (c *RetentionCleaner) purge(ctx context.Context, rule RetentionRule) (int, error) {
	cutoff := c.now().AddDate(0, 0, -rule.Days)
	removed := 0
	err := filepath.WalkDir(rule.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			c.logger.Warn("Failed to remove aged file.", "path", path, "error", err)
			return nil
		}
		removed++
		return nil
	})
	return removed, err
}
