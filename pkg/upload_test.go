package pkg

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sparcd-io/cli/internal/api"
	"github.com/sparcd-io/cli/pkg/model"
	"github.com/sparcd-io/cli/pkg/uploader"
)

// uploadStub fakes the sandbox endpoints the full pipeline touches.
type uploadStub struct {
	mu          sync.Mutex
	prevExists  bool
	prevID      string
	preUploaded []string
	total       int

	registered   int
	regPath      string
	regFiles     []string
	received     map[string]bool
	completed    int
	completedIDs []string
	resets       int
	abandoned    int
}

func (s *uploadStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/sandboxPrev":
			r.ParseForm()
			if !s.prevExists {
				fmt.Fprintf(w, `{"exists": false, "path": %q}`, r.PostFormValue("path"))
				return
			}
			names, _ := json.Marshal(s.preUploaded)
			fmt.Fprintf(w, `{"exists": true, "path": %q, "uploadedFiles": %s, "elapsed_sec": 60.0, "id": %s}`,
				r.PostFormValue("path"), names, s.prevID)

		case "/sandboxNew":
			r.ParseForm()
			s.registered++
			s.regPath = r.PostFormValue("path")
			var names []string
			json.Unmarshal([]byte(r.PostFormValue("files")), &names)
			s.regFiles = names
			s.total = len(names)
			// A fresh session starts with a clean progress slate.
			s.preUploaded = nil
			fmt.Fprint(w, `{"id": 42}`)

		case "/sandboxFile":
			if err := r.ParseMultipartForm(4 << 20); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			for name := range r.MultipartForm.File {
				s.received[name] = true
			}
			fmt.Fprint(w, `{"success": true}`)

		case "/sandboxCounts":
			fmt.Fprintf(w, `{"total": %d, "uploaded": %d}`, s.total, len(s.received)+len(s.preUploaded))

		case "/sandboxCompleted":
			r.ParseForm()
			s.completed++
			s.completedIDs = append(s.completedIDs, r.PostFormValue("id"))
			fmt.Fprint(w, `{"success": true}`)

		case "/sandboxReset":
			r.ParseForm()
			s.resets++
			s.received = make(map[string]bool)
			s.preUploaded = nil
			fmt.Fprintf(w, `{"id": %s}`, s.prevID)

		case "/sandboxAbandon":
			s.abandoned++
			fmt.Fprintf(w, `{"id": %s, "completed": true}`, s.prevID)

		default:
			http.NotFound(w, r)
		}
	})
}

func writeUploadFolder(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	folder := filepath.Join(root, "SiteA")
	if err := os.MkdirAll(folder, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(folder, name), []byte("bytes"), 0644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	return folder
}

func fastSession() uploader.Config {
	cfg := uploader.DefaultConfig("UTC")
	cfg.ChunkRetryDelay = time.Millisecond
	cfg.PollInterval = 2 * time.Millisecond
	cfg.PollRetryDelay = time.Millisecond
	cfg.StallWarnAfter = 2 * time.Second
	cfg.StallRetryAfter = 5 * time.Second
	return cfg
}

func testAccount() model.Account {
	return model.Account{Host: "https://sparcd.example.org", Username: "alice"}
}

func uploadCtrl(t *testing.T, stub *uploadStub) *Ctrl {
	t.Helper()
	if stub.received == nil {
		stub.received = make(map[string]bool)
	}
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	ctrl := testCtrl(t)
	ctrl.Client = api.NewClient(api.Params{BaseURL: server.URL, Token: "tok"})
	if err := ctrl.EnsureAccountBuckets(testAccount().AccountKey()); err != nil {
		t.Fatalf("EnsureAccountBuckets failed: %v", err)
	}
	return ctrl
}

func baseOptions() UploadOptions {
	return UploadOptions{
		Config: model.UploadConfig{
			Collection: "desert-cams",
			Location:   "LOC12",
			Comment:    "march batch",
			Timezone:   "UTC",
		},
		Kind:    uploader.KindImage,
		Session: fastSession(),
		ChooseResolution: func(*uploader.Reconciliation) (uploader.Resolution, bool) {
			return uploader.ResolutionContinue, true
		},
	}
}

func TestUploadNewBatch(t *testing.T) {
	stub := &uploadStub{}
	ctrl := uploadCtrl(t, stub)
	folder := writeUploadFolder(t, "a.jpg", "b.jpg", "c.jpg", "notes.txt")

	summary, err := ctrl.Upload(context.Background(), testAccount(), folder, baseOptions())
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if summary == nil || !summary.Completed {
		t.Fatalf("summary = %+v, want completed", summary)
	}
	if summary.Uploaded != 3 {
		t.Errorf("Uploaded = %d, want 3 (notes.txt filtered out)", summary.Uploaded)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if stub.registered != 1 {
		t.Errorf("registered %d sessions, want 1", stub.registered)
	}
	if stub.regPath != "SiteA" {
		t.Errorf("registered path = %q, want SiteA", stub.regPath)
	}
	if len(stub.regFiles) != 3 {
		t.Errorf("registered %d files, want 3: %v", len(stub.regFiles), stub.regFiles)
	}
	if !stub.received["SiteA/a.jpg"] || !stub.received["SiteA/b.jpg"] || !stub.received["SiteA/c.jpg"] {
		t.Errorf("received = %v, want all three images", stub.received)
	}

	record, err := ctrl.GetSessionRecord(testAccount().AccountKey(), "SiteA")
	if err != nil {
		t.Fatalf("GetSessionRecord failed: %v", err)
	}
	if record == nil || !record.Completed || record.UploadID != "42" {
		t.Errorf("record = %+v, want completed with id 42", record)
	}
}

func TestUploadContinuesInterruptedSession(t *testing.T) {
	stub := &uploadStub{
		prevExists:  true,
		prevID:      "7",
		preUploaded: []string{"SiteA/a.jpg"},
		total:       3,
	}
	ctrl := uploadCtrl(t, stub)
	folder := writeUploadFolder(t, "a.jpg", "b.jpg", "c.jpg")

	var offered *uploader.Reconciliation
	opts := baseOptions()
	opts.ChooseResolution = func(r *uploader.Reconciliation) (uploader.Resolution, bool) {
		offered = r
		return uploader.ResolutionContinue, true
	}

	summary, err := ctrl.Upload(context.Background(), testAccount(), folder, opts)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if !summary.Completed {
		t.Fatalf("summary = %+v, want completed", summary)
	}
	if summary.UploadID != "7" {
		t.Errorf("UploadID = %q, want the recovered session 7", summary.UploadID)
	}

	if offered == nil {
		t.Fatalf("the resolution chooser was never consulted")
	}
	if len(offered.PendingFiles) != 2 {
		t.Errorf("offered %d pending files, want 2", len(offered.PendingFiles))
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if stub.registered != 0 {
		t.Errorf("a new session was registered on continue")
	}
	if stub.received["SiteA/a.jpg"] {
		t.Errorf("the already-uploaded file was sent again")
	}
	if !stub.received["SiteA/b.jpg"] || !stub.received["SiteA/c.jpg"] {
		t.Errorf("received = %v, want the two pending files", stub.received)
	}
}

func TestUploadRestartResetsSession(t *testing.T) {
	stub := &uploadStub{
		prevExists:  true,
		prevID:      "7",
		preUploaded: []string{"SiteA/a.jpg"},
		total:       2,
	}
	ctrl := uploadCtrl(t, stub)
	folder := writeUploadFolder(t, "a.jpg", "b.jpg")

	opts := baseOptions()
	opts.ChooseResolution = func(*uploader.Reconciliation) (uploader.Resolution, bool) {
		return uploader.ResolutionRestart, true
	}

	summary, err := ctrl.Upload(context.Background(), testAccount(), folder, opts)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if !summary.Completed {
		t.Fatalf("summary = %+v, want completed", summary)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if stub.resets != 1 {
		t.Errorf("reset endpoint hit %d times, want 1", stub.resets)
	}
	// After the reset the full list is re-uploaded, including the file
	// the interrupted session already had.
	if !stub.received["SiteA/a.jpg"] || !stub.received["SiteA/b.jpg"] {
		t.Errorf("received = %v, want both files", stub.received)
	}
}

func TestUploadCreateNewReplacesSession(t *testing.T) {
	stub := &uploadStub{
		prevExists:  true,
		prevID:      "7",
		preUploaded: []string{"SiteA/a.jpg"},
		total:       2,
	}
	ctrl := uploadCtrl(t, stub)
	folder := writeUploadFolder(t, "a.jpg", "b.jpg")

	opts := baseOptions()
	opts.ChooseResolution = func(*uploader.Reconciliation) (uploader.Resolution, bool) {
		return uploader.ResolutionCreateNew, true
	}

	summary, err := ctrl.Upload(context.Background(), testAccount(), folder, opts)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if !summary.Completed {
		t.Fatalf("summary = %+v, want completed", summary)
	}
	if summary.UploadID != "42" {
		t.Errorf("UploadID = %q, want the replacement session 42", summary.UploadID)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	// The old session is closed before anything else, then exactly one
	// replacement is registered and completed in turn.
	if len(stub.completedIDs) != 2 || stub.completedIDs[0] != "7" || stub.completedIDs[1] != "42" {
		t.Errorf("completed ids = %v, want [7 42]", stub.completedIDs)
	}
	if stub.registered != 1 {
		t.Errorf("registered %d sessions, want 1", stub.registered)
	}
	if len(stub.regFiles) != 2 {
		t.Errorf("registered %d files, want the full list of 2: %v", len(stub.regFiles), stub.regFiles)
	}
	// The replacement re-uploads everything, including what the old
	// session already had.
	if !stub.received["SiteA/a.jpg"] || !stub.received["SiteA/b.jpg"] {
		t.Errorf("received = %v, want both files", stub.received)
	}

	record, err := ctrl.GetSessionRecord(testAccount().AccountKey(), "SiteA")
	if err != nil {
		t.Fatalf("GetSessionRecord failed: %v", err)
	}
	if record == nil || record.Resolution != model.ResolutionReplace || record.UploadID != "42" {
		t.Errorf("record = %+v, want a replace record for session 42", record)
	}
}

func TestUploadAbandon(t *testing.T) {
	stub := &uploadStub{
		prevExists: true,
		prevID:     "7",
		total:      2,
	}
	ctrl := uploadCtrl(t, stub)
	folder := writeUploadFolder(t, "a.jpg", "b.jpg")

	opts := baseOptions()
	opts.ChooseResolution = func(*uploader.Reconciliation) (uploader.Resolution, bool) {
		return uploader.ResolutionAbandon, true
	}

	summary, err := ctrl.Upload(context.Background(), testAccount(), folder, opts)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if summary != nil {
		t.Errorf("summary = %+v, want nil after abandon", summary)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if stub.abandoned != 1 {
		t.Errorf("abandon endpoint hit %d times, want 1", stub.abandoned)
	}
	if len(stub.received) != 0 {
		t.Errorf("files were uploaded despite abandoning: %v", stub.received)
	}

	record, err := ctrl.GetSessionRecord(testAccount().AccountKey(), "SiteA")
	if err != nil {
		t.Fatalf("GetSessionRecord failed: %v", err)
	}
	if record == nil || record.Resolution != model.ResolutionAbandon {
		t.Errorf("record = %+v, want an abandon record", record)
	}
}

func TestUploadCancelledByChooser(t *testing.T) {
	stub := &uploadStub{
		prevExists: true,
		prevID:     "7",
		total:      1,
	}
	ctrl := uploadCtrl(t, stub)
	folder := writeUploadFolder(t, "a.jpg")

	opts := baseOptions()
	opts.ChooseResolution = func(*uploader.Reconciliation) (uploader.Resolution, bool) {
		return 0, false
	}

	summary, err := ctrl.Upload(context.Background(), testAccount(), folder, opts)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if summary != nil {
		t.Errorf("summary = %+v, want nil on cancel", summary)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if len(stub.received) != 0 || stub.registered != 0 {
		t.Errorf("server was touched after the user cancelled")
	}
}

func TestUploadValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.UploadConfig)
	}{
		{"missing collection", func(c *model.UploadConfig) { c.Collection = "" }},
		{"missing location", func(c *model.UploadConfig) { c.Location = "" }},
		{"comment too short", func(c *model.UploadConfig) { c.Comment = "ab" }},
		{"comment only whitespace", func(c *model.UploadConfig) { c.Comment = "    " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &uploadStub{}
			ctrl := uploadCtrl(t, stub)
			folder := writeUploadFolder(t, "a.jpg")

			opts := baseOptions()
			tt.mutate(&opts.Config)

			if _, err := ctrl.Upload(context.Background(), testAccount(), folder, opts); err == nil {
				t.Errorf("expected a validation error")
			}

			stub.mu.Lock()
			touched := stub.registered != 0 || len(stub.received) != 0
			stub.mu.Unlock()
			if touched {
				t.Errorf("server was touched despite invalid config")
			}
		})
	}
}

func TestUploadSkipsEmptyFolder(t *testing.T) {
	stub := &uploadStub{}
	ctrl := uploadCtrl(t, stub)
	folder := writeUploadFolder(t) // no files

	summary, err := ctrl.Upload(context.Background(), testAccount(), folder, baseOptions())
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if summary != nil {
		t.Errorf("summary = %+v, want nil for an empty folder", summary)
	}
}
