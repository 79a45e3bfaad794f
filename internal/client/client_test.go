package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/harryheman/slack-clone/internal/models"
	"github.com/harryheman/slack-clone/internal/pager"
)

const testToken = "test-token"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeEnvelope(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"code": code, "message": message}})
}

// historyServer serves a channel of n messages the way the API does.
func historyServer(t *testing.T, n int) *httptest.Server {
	t.Helper()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var all []models.MessageView // newest first
	for i := n; i >= 1; i-- {
		all = append(all, models.MessageView{Message: models.Message{
			ID:        int64(i),
			ChannelID: func(v int64) *int64 { return &v }(7),
			Body:      fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			writeEnvelope(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
			return
		}
		if r.URL.Query().Get("channel_id") != "7" {
			writeEnvelope(w, http.StatusBadRequest, "INVALID_SCOPE", "unexpected scope")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		token := r.URL.Query().Get("cursor")
		cursor, err := models.DecodeCursor(token)
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, "INVALID_CURSOR", "cursor is malformed")
			return
		}
		page := models.MessagePage{Page: []models.MessageView{}, NextCursor: token}
		for _, m := range all {
			if len(page.Page) == limit {
				break
			}
			if cursor != nil && !m.CreatedAt.Before(cursor.CreatedAt) {
				continue
			}
			page.Page = append(page.Page, m)
		}
		page.Exhausted = len(page.Page) < limit
		if k := len(page.Page); k > 0 {
			page.NextCursor = models.CursorFor(&page.Page[k-1].Message).Encode()
		}
		writeJSON(w, http.StatusOK, page)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchMessages(t *testing.T) {
	srv := historyServer(t, 3)
	c := New(srv.URL, testToken)

	page, err := c.FetchMessages(context.Background(), models.Scope{ChannelID: 7}, "", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Page) != 2 || page.Page[0].ID != 3 || page.Exhausted {
		t.Fatalf("unexpected first page %+v", page)
	}

	next, err := c.FetchMessages(context.Background(), models.Scope{ChannelID: 7}, page.NextCursor, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(next.Page) != 1 || next.Page[0].ID != 1 || !next.Exhausted {
		t.Fatalf("unexpected second page %+v", next)
	}
}

func TestFetchMessages_DrivesPager(t *testing.T) {
	srv := historyServer(t, 5)
	c := New(srv.URL, testToken)
	p := pager.New(c, models.Scope{ChannelID: 7}, 2)
	ctx := context.Background()

	if err := p.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	for p.CanLoadMore() {
		if err := p.LoadMore(ctx); err != nil {
			t.Fatalf("load more: %v", err)
		}
	}

	results := p.Results()
	if len(results) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(results))
	}
	for i, m := range results {
		if want := int64(5 - i); m.ID != want {
			t.Errorf("result %d: expected id %d, got %d", i, want, m.ID)
		}
	}
	if p.State() != pager.StateExhausted {
		t.Errorf("expected exhausted, got %s", p.State())
	}
}

func TestAPIError_DecodesEnvelope(t *testing.T) {
	srv := historyServer(t, 1)
	c := New(srv.URL, "wrong")

	_, err := c.FetchMessages(context.Background(), models.Scope{ChannelID: 7}, "", 10)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Code != "UNAUTHORIZED" {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if IsTransient(err) {
		t.Error("a 401 must not be transient")
	}
}

func TestAPIError_NonEnvelopeBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	}))
	defer srv.Close()

	err := New(srv.URL, testToken).Health(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != "HTTP_502" {
		t.Errorf("expected fallback code HTTP_502, got %s", apiErr.Code)
	}
	if !IsTransient(err) {
		t.Error("a 502 must be transient")
	}
}

func TestIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	netErr := New(addr, testToken).Health(context.Background())
	if netErr == nil {
		t.Fatal("expected a connection error")
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"service unavailable", &APIError{Status: 503, Code: "STORE_UNAVAILABLE"}, true},
		{"forbidden", &APIError{Status: 403, Code: "NOT_A_MEMBER"}, false},
		{"validation", &APIError{Status: 400, Code: "INVALID_CURSOR"}, false},
		{"connection refused", netErr, true},
		{"canceled", context.Canceled, false},
		{"wrapped unavailable", fmt.Errorf("toggle: %w", &APIError{Status: 503}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestToggleReaction(t *testing.T) {
	var gotPath, gotValue string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotValue = body["value"]
		writeJSON(w, http.StatusOK, map[string]any{"id": "99", "added": true})
	}))
	defer srv.Close()

	result, err := New(srv.URL, testToken).ToggleReaction(context.Background(), ToggleInput{MessageID: 42, Value: "👍"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/api/v1/messages/42/reactions" || gotValue != "👍" {
		t.Errorf("unexpected request %s %q", gotPath, gotValue)
	}
	if !result.Added || result.ReactionID != 99 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestSendMessage_Reply(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusCreated, models.MessageView{Message: models.Message{ID: 5, Body: "hi"}})
	}))
	defer srv.Close()

	view, err := New(srv.URL, testToken).SendMessage(context.Background(), SendMessageInput{
		Scope: models.Scope{ParentMessageID: 4},
		Body:  "hi",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.ID != 5 {
		t.Errorf("unexpected view %+v", view)
	}
	if got["parent_message_id"] != "4" {
		t.Errorf("expected parent id sent as a string, got %v", got["parent_message_id"])
	}
	if _, ok := got["channel_id"]; ok {
		t.Error("absent scope fields must be omitted")
	}
}

func TestOpenConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/workspaces/1/conversations" {
			writeEnvelope(w, http.StatusNotFound, "NOT_FOUND", "no route")
			return
		}
		writeJSON(w, http.StatusOK, models.Conversation{ID: 10, WorkspaceID: 1, MemberOneID: 2, MemberTwoID: 3})
	}))
	defer srv.Close()

	conv, err := New(srv.URL, testToken).OpenConversation(context.Background(), 1, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.ID != 10 {
		t.Errorf("unexpected conversation %+v", conv)
	}
}
