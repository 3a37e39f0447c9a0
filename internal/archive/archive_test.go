package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type recordingMirror struct {
	names []string
	err   error
}

func (m *recordingMirror) Save(_ context.Context, name string, _ []byte) error {
	m.names = append(m.names, name)
	return m.err
}

func fixedWriter(root string, mirror Mirror) *Writer {
	w := NewWriter(root, mirror, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.now = func() time.Time { return time.Date(2024, time.March, 5, 14, 7, 9, 42*int(time.Millisecond), time.UTC) }
	return w
}

func TestWriteLayout(t *testing.T) {
	root := t.TempDir()
	path, err := fixedWriter(root, nil).Write(context.Background(), "400-Submit", []byte("<x/>"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := filepath.Join(root, "Mar-05-2024", "20240305-140709042_400-Submit.xml")
	if path != want {
		t.Errorf("path = %s, want %s", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "<x/>" {
		t.Errorf("content = %q, err = %v", data, err)
	}
}

func TestWriteNeverOverwrites(t *testing.T) {
	w := fixedWriter(t.TempDir(), nil)
	first, err := w.Write(context.Background(), "Notify", []byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := w.Write(context.Background(), "Notify", []byte("b"))
	if err != nil {
		t.Fatal(err)
	}
	if first == second || !strings.HasSuffix(second, "_Notify-1.xml") {
		t.Errorf("first = %s, second = %s", first, second)
	}
	if data, _ := os.ReadFile(first); string(data) != "a" {
		t.Errorf("first copy overwritten: %q", data)
	}
}

func TestDisabledWriter(t *testing.T) {
	path, err := fixedWriter("", nil).Write(context.Background(), "x", []byte("a"))
	if path != "" || err != nil {
		t.Errorf("path = %q, err = %v", path, err)
	}
}

func TestMirrorFailureDoesNotFailWrite(t *testing.T) {
	m := &recordingMirror{err: errors.New("bucket unavailable")}
	path, err := fixedWriter(t.TempDir(), m).Write(context.Background(), "D-1/Notify", []byte("a"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(m.names) != 1 || m.names[0] != "Mar-05-2024/20240305-140709042_D-1_Notify.xml" {
		t.Errorf("mirror names = %v", m.names)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("local copy missing: %v", err)
	}
}
