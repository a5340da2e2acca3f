package watcher

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sparcd-io/cli/pkg/notify"
)

func TestBatchFolderMapping(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, time.Second, notify.NewConsole(), func(string) {})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	tests := []struct {
		name string
		path string
		want string
		ok   bool
	}{
		{"file directly in a batch", filepath.Join(root, "SiteA", "a.jpg"), filepath.Join(root, "SiteA"), true},
		{"file nested deeper", filepath.Join(root, "SiteA", "day2", "b.jpg"), filepath.Join(root, "SiteA"), true},
		{"the batch folder itself", filepath.Join(root, "SiteB"), filepath.Join(root, "SiteB"), true},
		{"the root itself", root, "", false},
		{"outside the root", filepath.Join(filepath.Dir(root), "elsewhere", "c.jpg"), "", false},
		{"hidden first-level folder", filepath.Join(root, ".staging", "d.jpg"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := w.batchFolder(tt.path)
			if ok != tt.ok {
				t.Fatalf("batchFolder(%s) ok = %v, want %v", tt.path, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("batchFolder(%s) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), time.Second, notify.NewConsole(), func(string) {})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}
