package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTestClient spins up a server handling both the token endpoint and the
// given API handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		ClientID:     "id",
		TenantID:     "tenant",
		ClientSecret: "secret",
		User:         "lee@example.com",
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/token",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestListCalendars(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/lee@example.com/calendars" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing auth header: %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]string{
				{"id": "cal-1", "name": "Calendar"},
				{"id": "cal-2", "name": "Work"},
			},
		})
	})

	cals, err := c.ListCalendars(context.Background())
	if err != nil {
		t.Fatalf("ListCalendars failed: %v", err)
	}
	if len(cals) != 2 || cals[1].Name != "Work" {
		t.Errorf("unexpected calendars: %+v", cals)
	}
}

func TestListEventsConvertsZones(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				{
					"id":      "ev-1",
					"subject": "Standup",
					"start":   map[string]string{"dateTime": "2026-08-30T15:00:00.0000000", "timeZone": "Eastern Standard Time"},
					"end":     map[string]string{"dateTime": "2026-08-30T15:30:00.0000000", "timeZone": "Eastern Standard Time"},
					"attendees": []map[string]any{
						{"emailAddress": map[string]string{"address": "bob@example.com"}},
					},
				},
			},
		})
	})

	events, err := c.ListEvents(context.Background(), "cal-1", "Work", time.Now(), time.Now())
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Calendar != "Work" {
		t.Errorf("expected source calendar tag, got %q", ev.Calendar)
	}
	if ev.TimeZone != "America/New_York" {
		t.Errorf("expected normalized zone, got %q", ev.TimeZone)
	}
	// 15:00 New York is 19:00 UTC in August (EDT).
	if got := ev.Start.UTC().Hour(); got != 19 {
		t.Errorf("expected 19:00 UTC start, got %d:00", got)
	}
	if len(ev.Attendees) != 1 || ev.Attendees[0] != "bob@example.com" {
		t.Errorf("unexpected attendees: %v", ev.Attendees)
	}
}

func TestCreateEventSendsHomeZone(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "ev-new",
			"subject": "Dentist",
			"start":   map[string]string{"dateTime": "2026-08-30T17:15:00", "timeZone": "America/Vancouver"},
			"end":     map[string]string{"dateTime": "2026-08-30T18:15:00", "timeZone": "America/Vancouver"},
		})
	})

	loc, _ := time.LoadLocation("America/Vancouver")
	start := time.Date(2026, 8, 30, 17, 15, 0, 0, loc)
	ev, err := c.CreateEvent(context.Background(), CreateEventParams{
		Subject: "Dentist",
		Start:   start,
		End:     start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	if ev.ID != "ev-new" {
		t.Errorf("unexpected event id: %q", ev.ID)
	}

	startBody := got["start"].(map[string]any)
	if startBody["timeZone"] != "America/Vancouver" {
		t.Errorf("expected home zone in request, got %v", startBody["timeZone"])
	}
}

func TestDeleteEvent(t *testing.T) {
	deleted := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deleted = true
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	})

	if err := c.DeleteEvent(context.Background(), "ev-1"); err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}
	if !deleted {
		t.Error("expected DELETE request")
	}
}

func TestGetFileTextNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "itemNotFound", "message": "not found"},
		})
	})

	_, err := c.GetFileText(context.Background(), "ObsidianVault/Missing.md")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Errorf("expected IsNotFound, got %v", err)
	}
}

func TestGetFileTextReadsContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# Weekly Plan\n- [ ] call supplier\n"))
	})

	text, err := c.GetFileText(context.Background(), "ObsidianVault/Tasks/WeeklyPlan.md")
	if err != nil {
		t.Fatalf("GetFileText failed: %v", err)
	}
	if text != "# Weekly Plan\n- [ ] call supplier\n" {
		t.Errorf("unexpected content: %q", text)
	}
}
