// Package archive keeps audit copies of backend messages on local disk,
// partitioned by day, with an optional remote mirror.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	dayLayout   = "Jan-02-2006"
	stampLayout = "20060102-150405"
	maxSuffix   = 1000
)

// Mirror receives a copy of every archived file. name is the path relative
// to the archive root, using forward slashes.
type Mirror interface {
	Save(ctx context.Context, name string, content []byte) error
}

// Writer writes audit copies under a root directory. A Writer with an empty
// root is disabled and writes nothing.
type Writer struct {
	root   string
	mirror Mirror
	logger *slog.Logger
	now    func() time.Time
}

// NewWriter returns a writer for root. mirror may be nil.
func NewWriter(root string, mirror Mirror, logger *slog.Logger) *Writer {
	return &Writer{root: root, mirror: mirror, logger: logger, now: time.Now}
}

// Enabled reports whether the writer has a root directory.
func (w *Writer) Enabled() bool { return w != nil && w.root != "" }

// Write stores data as <root>/<Mon-dd-yyyy>/<yyyyMMdd-HHmmssfff>_<id>.xml and
// returns the path written, or "" when the writer is disabled. Names never
// collide: a numeric suffix is added when the timestamp is already taken.
func (w *Writer) Write(ctx context.Context, id string, data []byte) (string, error) {
	if !w.Enabled() {
		return "", nil
	}
	now := w.now()
	dir := filepath.Join(w.root, now.Format(dayLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive dir %s: %w", dir, err)
	}

	base := fmt.Sprintf("%s%03d_%s", now.Format(stampLayout), now.Nanosecond()/int(time.Millisecond), sanitize(id))
	path, err := create(dir, base, data)
	if err != nil {
		return "", err
	}

	if w.mirror != nil {
		rel, _ := filepath.Rel(w.root, path)
		if err := w.mirror.Save(ctx, filepath.ToSlash(rel), data); err != nil {
			w.logger.Warn("Failed to mirror audit copy.", "path", path, "error", err)
		}
	}
	return path, nil
}

func create(dir, base string, data []byte) (string, error) {
	for i := 0; i < maxSuffix; i++ {
		name := base + ".xml"
		if i > 0 {
			name = fmt.Sprintf("%s-%d.xml", base, i)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create audit file %s: %w", path, err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("failed to write audit file %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close audit file %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free audit file name for %s in %s", base, dir)
}

// sanitize keeps ids from escaping the archive directory.
func sanitize(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "message"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, id)
}
