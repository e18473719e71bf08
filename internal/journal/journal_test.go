package journal

import (
	"testing"
)

func TestLogAndRecent(t *testing.T) {
	j := New(t.TempDir())

	err := j.LogAction("chan-1", "create_event", map[string]any{"subject": "Dentist"}, "created")
	if err != nil {
		t.Fatalf("LogAction failed: %v", err)
	}
	if err := j.LogCommand("chan-1", "/status"); err != nil {
		t.Fatalf("LogCommand failed: %v", err)
	}

	entries, err := j.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Type != EntryAction || entries[0].Action != "create_event" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[0].ID == "" || entries[1].ID == "" {
		t.Error("expected generated entry ids")
	}
	if entries[0].ID == entries[1].ID {
		t.Error("expected unique entry ids")
	}
}

func TestLogError(t *testing.T) {
	j := New(t.TempDir())

	if err := j.LogError("chan-1", "model unavailable"); err != nil {
		t.Fatalf("LogError failed: %v", err)
	}

	entries, err := j.Recent(1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Type != EntryError || entries[0].Outcome != "model unavailable" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestRecentEmpty(t *testing.T) {
	j := New(t.TempDir())
	entries, err := j.Recent(5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if entries != nil {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}
