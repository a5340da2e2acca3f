package pkg

import (
	"path/filepath"
	"testing"

	"github.com/sparcd-io/cli/pkg/model"
	"github.com/sparcd-io/cli/pkg/notify"
)

func testCtrl(t *testing.T) *Ctrl {
	t.Helper()
	db, err := GetDB(filepath.Join(t.TempDir(), "sparcd.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Ctrl{DB: db, Notify: notify.NewConsole()}
}

func TestAccountStoreValues(t *testing.T) {
	ctrl := testCtrl(t)
	const accountKey = "https://sparcd.example.org/alice"

	if err := ctrl.EnsureAccountBuckets(accountKey); err != nil {
		t.Fatalf("EnsureAccountBuckets failed: %v", err)
	}

	if err := ctrl.PutValue(accountKey, model.KVConfig, []byte("collection"), []byte("desert-cams")); err != nil {
		t.Fatalf("PutValue failed: %v", err)
	}
	value, err := ctrl.GetValue(accountKey, model.KVConfig, []byte("collection"))
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if string(value) != "desert-cams" {
		t.Errorf("value = %q, want desert-cams", value)
	}

	missing, err := ctrl.GetValue(accountKey, model.KVConfig, []byte("absent"))
	if err != nil {
		t.Fatalf("GetValue for a missing key failed: %v", err)
	}
	if missing != nil {
		t.Errorf("missing key yielded %q, want nil", missing)
	}

	if err := ctrl.DeleteValue(accountKey, model.KVConfig, []byte("collection")); err != nil {
		t.Fatalf("DeleteValue failed: %v", err)
	}
	value, err = ctrl.GetValue(accountKey, model.KVConfig, []byte("collection"))
	if err != nil {
		t.Fatalf("GetValue after delete failed: %v", err)
	}
	if value != nil {
		t.Errorf("deleted key yielded %q, want nil", value)
	}

	// Values for an account whose buckets were never created are an error,
	// not an empty result.
	if _, err := ctrl.GetValue("https://sparcd.example.org/nobody", model.KVConfig, []byte("x")); err == nil {
		t.Errorf("expected an error for an unknown account")
	}
}

func TestSessionRecordRoundtrip(t *testing.T) {
	ctrl := testCtrl(t)
	const accountKey = "https://sparcd.example.org/alice"

	if err := ctrl.EnsureAccountBuckets(accountKey); err != nil {
		t.Fatalf("EnsureAccountBuckets failed: %v", err)
	}

	record, err := ctrl.GetSessionRecord(accountKey, "SiteA/2024")
	if err != nil {
		t.Fatalf("GetSessionRecord failed: %v", err)
	}
	if record != nil {
		t.Fatalf("unexpected record before save: %+v", record)
	}

	saved := &model.SessionRecord{
		Path:        "SiteA/2024",
		UploadID:    "42",
		Fingerprint: "abc123",
		FileCount:   12,
		Resolution:  model.ResolutionContinue,
		StartedAt:   1709280000,
	}
	if err := ctrl.SaveSessionRecord(accountKey, saved); err != nil {
		t.Fatalf("SaveSessionRecord failed: %v", err)
	}

	record, err = ctrl.GetSessionRecord(accountKey, "SiteA/2024")
	if err != nil {
		t.Fatalf("GetSessionRecord failed: %v", err)
	}
	if record == nil {
		t.Fatalf("record missing after save")
	}
	if record.UploadID != "42" || record.FileCount != 12 || record.Resolution != model.ResolutionContinue {
		t.Errorf("record = %+v", record)
	}
	if record.UpdatedAt == 0 {
		t.Errorf("UpdatedAt was not stamped on save")
	}

	// A second save for the same path replaces the record.
	saved.Completed = true
	if err := ctrl.SaveSessionRecord(accountKey, saved); err != nil {
		t.Fatalf("second SaveSessionRecord failed: %v", err)
	}
	record, err = ctrl.GetSessionRecord(accountKey, "SiteA/2024")
	if err != nil {
		t.Fatalf("GetSessionRecord failed: %v", err)
	}
	if !record.Completed {
		t.Errorf("Completed = false after resave")
	}

	// Records are scoped per account.
	const otherKey = "https://sparcd.example.org/bob"
	if err := ctrl.EnsureAccountBuckets(otherKey); err != nil {
		t.Fatalf("EnsureAccountBuckets failed: %v", err)
	}
	record, err = ctrl.GetSessionRecord(otherKey, "SiteA/2024")
	if err != nil {
		t.Fatalf("GetSessionRecord failed: %v", err)
	}
	if record != nil {
		t.Errorf("record leaked across accounts: %+v", record)
	}
}
