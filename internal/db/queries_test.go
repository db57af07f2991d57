package db

import (
	"testing"
	"time"

	"github.com/hpungsan/vcp/internal/errors"
)

func TestContextRoundTrip(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	now := time.Now()
	if err := UpsertContext(db, "user-1", `{"vcp_version":"1.0.0"}`, now); err != nil {
		t.Fatalf("UpsertContext() error = %v", err)
	}

	body, err := GetContext(db, "user-1")
	if err != nil {
		t.Fatalf("GetContext() error = %v", err)
	}
	if body != `{"vcp_version":"1.0.0"}` {
		t.Errorf("GetContext() = %q", body)
	}

	// Upsert replaces
	if err := UpsertContext(db, "user-1", `{"vcp_version":"1.0.1"}`, now.Add(time.Second)); err != nil {
		t.Fatalf("UpsertContext() replace error = %v", err)
	}
	body, err = GetContext(db, "user-1")
	if err != nil {
		t.Fatalf("GetContext() after replace error = %v", err)
	}
	if body != `{"vcp_version":"1.0.1"}` {
		t.Errorf("GetContext() after replace = %q", body)
	}
}

func TestGetContext_NotFound(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	_, err = GetContext(db, "user-missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetContext() error = %v, want NOT_FOUND", err)
	}
}

func TestListContextIDs_MostRecentFirst(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	base := time.Now()
	if err := UpsertContext(db, "user-a", `{}`, base); err != nil {
		t.Fatalf("UpsertContext() error = %v", err)
	}
	if err := UpsertContext(db, "user-b", `{}`, base.Add(time.Minute)); err != nil {
		t.Fatalf("UpsertContext() error = %v", err)
	}

	ids, err := ListContextIDs(db)
	if err != nil {
		t.Fatalf("ListContextIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "user-b" || ids[1] != "user-a" {
		t.Errorf("ListContextIDs() = %v, want [user-b user-a]", ids)
	}
}

func TestAuditEntries_AppendAndList(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	base := time.Now()
	if err := InsertAuditEntry(db, "share-1", "user-1", base, `{"event_type":"context_shared"}`); err != nil {
		t.Fatalf("InsertAuditEntry() error = %v", err)
	}
	if err := InsertAuditEntry(db, "rec-1", "user-1", base.Add(time.Second), `{"event_type":"recommendation_given"}`); err != nil {
		t.Fatalf("InsertAuditEntry() error = %v", err)
	}
	if err := InsertAuditEntry(db, "share-2", "user-other", base, `{"event_type":"context_shared"}`); err != nil {
		t.Fatalf("InsertAuditEntry() error = %v", err)
	}

	entries, err := ListAuditEntries(db, "user-1")
	if err != nil {
		t.Fatalf("ListAuditEntries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListAuditEntries() length = %d, want 2", len(entries))
	}
	if entries[0] != `{"event_type":"context_shared"}` {
		t.Errorf("entries[0] = %q", entries[0])
	}

	// Duplicate id rejected (append-only with unique ids)
	if err := InsertAuditEntry(db, "share-1", "user-1", base, `{}`); err == nil {
		t.Error("InsertAuditEntry() duplicate id expected error, got nil")
	}
}

func TestClearAuditEntries(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	now := time.Now()
	if err := InsertAuditEntry(db, "share-1", "user-1", now, `{}`); err != nil {
		t.Fatalf("InsertAuditEntry() error = %v", err)
	}
	if err := InsertAuditEntry(db, "share-2", "user-2", now, `{}`); err != nil {
		t.Fatalf("InsertAuditEntry() error = %v", err)
	}

	if err := ClearAuditEntries(db, "user-1"); err != nil {
		t.Fatalf("ClearAuditEntries() error = %v", err)
	}

	entries, err := ListAuditEntries(db, "user-1")
	if err != nil {
		t.Fatalf("ListAuditEntries() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("ListAuditEntries() after clear length = %d, want 0", len(entries))
	}

	// Other profiles untouched
	entries, err = ListAuditEntries(db, "user-2")
	if err != nil {
		t.Fatalf("ListAuditEntries() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("ListAuditEntries(user-2) length = %d, want 1", len(entries))
	}
}

func TestConsentRoundTrip(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	now := time.Now()
	if err := UpsertConsent(db, "fittrack", `{"granted":true}`, now); err != nil {
		t.Fatalf("UpsertConsent() error = %v", err)
	}

	record, err := GetConsent(db, "fittrack")
	if err != nil {
		t.Fatalf("GetConsent() error = %v", err)
	}
	if record != `{"granted":true}` {
		t.Errorf("GetConsent() = %q", record)
	}

	records, err := ListConsents(db)
	if err != nil {
		t.Fatalf("ListConsents() error = %v", err)
	}
	if len(records) != 1 || records["fittrack"] == "" {
		t.Errorf("ListConsents() = %v", records)
	}

	if err := DeleteConsent(db, "fittrack"); err != nil {
		t.Fatalf("DeleteConsent() error = %v", err)
	}
	if _, err := GetConsent(db, "fittrack"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetConsent() after delete error = %v, want NOT_FOUND", err)
	}
}
