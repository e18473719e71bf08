package conv

import (
	"fmt"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreAppendAndRecent(t *testing.T) {
	s := openTestStore(t)

	for i := 1; i <= 3; i++ {
		err := s.Append("chan-1", "lee", Turn{
			UserText:  fmt.Sprintf("question %d", i),
			AgentText: fmt.Sprintf("answer %d", i),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	turns, err := s.RecentTurns("chan-1", 2)
	if err != nil {
		t.Fatalf("RecentTurns failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	// Chronological order: oldest of the returned window first.
	if turns[0].UserText != "question 2" || turns[1].UserText != "question 3" {
		t.Errorf("wrong order: %q, %q", turns[0].UserText, turns[1].UserText)
	}
}

func TestStoreRecentIsolatesConversations(t *testing.T) {
	s := openTestStore(t)

	s.Append("chan-1", "lee", Turn{UserText: "hello", AgentText: "hi"})
	s.Append("chan-2", "lee", Turn{UserText: "other", AgentText: "channel"})

	turns, err := s.RecentTurns("chan-1", 10)
	if err != nil {
		t.Fatalf("RecentTurns failed: %v", err)
	}
	if len(turns) != 1 || turns[0].UserText != "hello" {
		t.Errorf("expected only chan-1 turns, got %+v", turns)
	}
}

func TestStoreSearch(t *testing.T) {
	s := openTestStore(t)

	s.Append("chan-1", "lee", Turn{UserText: "start a timer for CNC work", AgentText: "started"})
	s.Append("chan-1", "lee", Turn{UserText: "what's on today", AgentText: "two meetings"})
	s.Append("chan-1", "lee", Turn{UserText: "stop it", AgentText: "stopped the cnc timer"})

	results, err := s.Search("chan-1", "cnc", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
	// Newest first.
	if results[0].Turn.UserText != "stop it" {
		t.Errorf("expected newest match first, got %q", results[0].Turn.UserText)
	}
}

func TestStoreSummaryAndExport(t *testing.T) {
	s := openTestStore(t)

	sum, err := s.Summary("chan-1", 7)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if sum != "No conversations in the past 7 days." {
		t.Errorf("unexpected empty summary: %q", sum)
	}

	s.Append("chan-1", "lee", Turn{UserText: "hello", AgentText: "hi"})

	sum, err = s.Summary("chan-1", 7)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if sum == "No conversations in the past 7 days." {
		t.Error("expected non-empty summary after append")
	}

	md, err := s.ExportMarkdown("chan-1", 7)
	if err != nil {
		t.Fatalf("ExportMarkdown failed: %v", err)
	}
	if md == "" || md[0] != '#' {
		t.Errorf("expected markdown document, got %q", md)
	}
}

func TestMemoryRingEviction(t *testing.T) {
	s := openTestStore(t)
	m := NewMemory(s, 5)

	for i := 1; i <= 7; i++ {
		err := m.Record("chan-1", "lee", Turn{
			UserText:  fmt.Sprintf("msg %d", i),
			AgentText: fmt.Sprintf("reply %d", i),
		})
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	// Capacity 5, recorded 7: cache retains 3..7; recent(3) is 5,6,7.
	turns, err := m.Recent("chan-1", 3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	for i, want := range []string{"msg 5", "msg 6", "msg 7"} {
		if turns[i].UserText != want {
			t.Errorf("turn %d: expected %q, got %q", i, want, turns[i].UserText)
		}
	}
}

func TestMemoryLazyWarm(t *testing.T) {
	s := openTestStore(t)

	// Populate durable storage through one Memory, read through a fresh one
	// to force the cold path.
	warm := NewMemory(s, 5)
	warm.Record("chan-1", "lee", Turn{UserText: "before restart", AgentText: "ok"})

	cold := NewMemory(s, 5)
	turns, err := cold.Recent("chan-1", 5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(turns) != 1 || turns[0].UserText != "before restart" {
		t.Errorf("expected cache warmed from store, got %+v", turns)
	}
}

func TestStorePrune(t *testing.T) {
	s := openTestStore(t)
	s.Append("chan-1", "lee", Turn{UserText: "recent", AgentText: "kept"})

	n, err := s.PruneOlderThan(30)
	if err != nil {
		t.Fatalf("PruneOlderThan failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no rows pruned, got %d", n)
	}

	turns, _ := s.RecentTurns("chan-1", 10)
	if len(turns) != 1 {
		t.Errorf("recent turn should survive pruning, got %d turns", len(turns))
	}
}
