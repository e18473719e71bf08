package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-key", "test-model")
	c.SetBaseURL(srv.URL)
	return c
}

func TestComplete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("unexpected model: %q", req.Model)
		}
		if req.System == "" || len(req.Messages) != 1 {
			t.Errorf("malformed request: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{
				{"type": "text", "text": "ACTION: view_calendar"},
			},
		})
	})

	text, err := c.Complete(context.Background(), "you are a dispatcher", "what's on today")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if text != "ACTION: view_calendar" {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestCompleteAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "authentication_error", "message": "invalid key"},
		})
	})

	_, err := c.Complete(context.Background(), "sys", "hi")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestCompleteNoKey(t *testing.T) {
	c := NewClient("", "test-model")
	_, err := c.Complete(context.Background(), "sys", "hi")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
