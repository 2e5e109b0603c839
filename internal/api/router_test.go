package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/persona/internal/agent"
	"github.com/kalambet/persona/internal/profile"
	"github.com/kalambet/persona/internal/resolver"
	"github.com/kalambet/persona/internal/session"
	"github.com/kalambet/persona/internal/storage"
)

type mockReplier struct {
	reply string
	err   error
	got   []string
}

func (m *mockReplier) Reply(_ context.Context, message string) (string, error) {
	m.got = append(m.got, message)
	return m.reply, m.err
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestHandler(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	if deps.Resolver == nil {
		deps.Resolver = resolver.New(resolver.DefaultKeywords())
	}
	if deps.Source == nil {
		deps.Source = profile.Static{Doc: testDocument(t)}
	}
	return NewHandler(deps)
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func errorType(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v (%s)", err, w.Body.String())
	}
	return body.Error.Type
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, Deps{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t, Deps{})
	postJSON(t, h, "/v1/ask", `{"query":"skills"}`)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "persona_resolver_lookups_total") {
		t.Error("lookup counter not exported")
	}
}

func TestAsk(t *testing.T) {
	h := newTestHandler(t, Deps{})

	tests := []struct {
		name      string
		query     string
		wantKind  resolver.Kind
		wantStage resolver.Stage
		wantField string
	}{
		{"keyword", "who is muskan", resolver.KindValue, resolver.StageKeyword, "name"},
		{"fuzzy", "skils", resolver.KindValue, resolver.StageFuzzy, "skills"},
		{"scan", "react", resolver.KindValue, resolver.StageScan, "skills"},
		{"miss", "astrophysics", resolver.KindMiss, resolver.StageNone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(AskRequest{Query: tt.query})
			w := postJSON(t, h, "/v1/ask", string(body))
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}

			var resp AskResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if resp.Kind != tt.wantKind || resp.Stage != tt.wantStage || resp.Field != tt.wantField {
				t.Errorf("got kind=%s stage=%s field=%q", resp.Kind, resp.Stage, resp.Field)
			}
			if resp.Query != tt.query {
				t.Errorf("query = %q, want %q", resp.Query, tt.query)
			}
		})
	}
}

func TestAsk_ResultShapes(t *testing.T) {
	h := newTestHandler(t, Deps{})

	w := postJSON(t, h, "/v1/ask", `{"query":"github"}`)
	var resp struct {
		Result map[string]string `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Result["github"] != "https://github.com/muskan" {
		t.Errorf("result = %v", resp.Result)
	}

	w = postJSON(t, h, "/v1/ask", `{"query":"astrophysics"}`)
	var miss struct {
		Result string `json:"result"`
	}
	json.Unmarshal(w.Body.Bytes(), &miss)
	if !strings.HasPrefix(miss.Result, "I don't have knowledge about 'astrophysics'.") {
		t.Errorf("miss result = %q", miss.Result)
	}
}

func TestAsk_FetchError(t *testing.T) {
	h := newTestHandler(t, Deps{Source: failingSource{err: &profile.FetchError{Status: 500}}})

	w := postJSON(t, h, "/v1/ask", `{"query":"who is muskan"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	var resp struct {
		Kind   resolver.Kind              `json:"kind"`
		Result resolver.FetchErrorPayload `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Kind != resolver.KindFetchError {
		t.Errorf("kind = %s", resp.Kind)
	}
	if resp.Result.Details != "Error fetching data: Status code 500" {
		t.Errorf("details = %q", resp.Result.Details)
	}
}

func TestAsk_InvalidBody(t *testing.T) {
	h := newTestHandler(t, Deps{})
	w := postJSON(t, h, "/v1/ask", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := errorType(t, w); got != "invalid_request_error" {
		t.Errorf("error type = %q", got)
	}
}

func TestChat_NoAgent(t *testing.T) {
	h := newTestHandler(t, Deps{})
	w := postJSON(t, h, "/v1/chat", `{"message":"hi"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestChat_RecordsSession(t *testing.T) {
	store := newTestStore(t)
	rep := &mockReplier{reply: "Muskan is a frontend developer."}
	h := newTestHandler(t, Deps{
		Agent:    rep,
		Sessions: session.NewManager(store),
		Store:    store,
	})

	w := postJSON(t, h, "/v1/chat", `{"message":"  who is muskan? ","message_id":"msg-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Reply != rep.reply {
		t.Errorf("reply = %q", resp.Reply)
	}
	if resp.ThreadID != "msg-1" || resp.Turn != 1 {
		t.Errorf("thread = %q turn = %d, want msg-1 / 1", resp.ThreadID, resp.Turn)
	}

	w = postJSON(t, h, "/v1/chat", `{"message":"skills?","thread_id":"msg-1","message_id":"msg-2"}`)
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.ThreadID != "msg-1" || resp.Turn != 2 {
		t.Errorf("second turn: thread = %q turn = %d", resp.ThreadID, resp.Turn)
	}

	sess, err := store.GetSession("msg-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Turns != 2 {
		t.Errorf("stored turns = %d, want 2", sess.Turns)
	}
}

func TestChat_FailedReplyIsNotCounted(t *testing.T) {
	store := newTestStore(t)
	rep := &mockReplier{reply: "ok"}
	h := newTestHandler(t, Deps{
		Agent:    rep,
		Sessions: session.NewManager(store),
		Store:    store,
	})

	w := postJSON(t, h, "/v1/chat", `{"message":"hi","thread_id":"t-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	before, err := store.GetSession("t-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}

	rep.err = errors.New("upstream down")
	w = postJSON(t, h, "/v1/chat", `{"message":"again","thread_id":"t-1"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}

	after, err := store.GetSession("t-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if after.Turns != 1 {
		t.Errorf("turns = %d, want 1", after.Turns)
	}
	if !after.LastSeenAt.Equal(before.LastSeenAt) {
		t.Errorf("last_seen_at moved from %v to %v", before.LastSeenAt, after.LastSeenAt)
	}

	w = postJSON(t, h, "/v1/chat", `{"message":"unrecorded","thread_id":"t-2"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	sessions, err := store.ListSessions(10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("sessions = %d, want 1", len(sessions))
	}
}

func TestChat_GeneratesThreadID(t *testing.T) {
	h := newTestHandler(t, Deps{Agent: &mockReplier{reply: "ok"}})

	w := postJSON(t, h, "/v1/chat", `{"message":"hello"}`)
	var resp ChatResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.ThreadID == "" {
		t.Error("expected generated thread id")
	}
}

func TestChat_EmptyMessage(t *testing.T) {
	rep := &mockReplier{reply: "unused"}
	h := newTestHandler(t, Deps{Agent: rep})

	w := postJSON(t, h, "/v1/chat", `{"message":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(rep.got) != 0 {
		t.Error("agent should not be called for an empty message")
	}
}

func TestChat_AgentErrors(t *testing.T) {
	h := newTestHandler(t, Deps{Agent: &mockReplier{err: errors.New("upstream down")}})
	w := postJSON(t, h, "/v1/chat", `{"message":"hi"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}

	h = newTestHandler(t, Deps{Agent: &mockReplier{err: agent.ErrEmptyMessage}})
	w = postJSON(t, h, "/v1/chat", `{"message":"hi"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestKeywords(t *testing.T) {
	h := newTestHandler(t, Deps{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/keywords", nil))

	var entries []resolver.Keyword
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(entries) != 14 {
		t.Errorf("got %d keywords, want 14", len(entries))
	}
}

func TestSessions(t *testing.T) {
	store := newTestStore(t)
	h := newTestHandler(t, Deps{
		Agent:    &mockReplier{reply: "ok"},
		Sessions: session.NewManager(store),
		Store:    store,
		Token:    "secret",
	})
	postJSON(t, h, "/v1/chat", `{"message":"hi","thread_id":"a"}`)
	postJSON(t, h, "/v1/chat", `{"message":"hi","thread_id":"b"}`)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions?limit=1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/sessions?limit=1", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var sessions []storage.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("got %d sessions, want 1", len(sessions))
	}
}

func TestSessions_NoStore(t *testing.T) {
	h := newTestHandler(t, Deps{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/sessions", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestRequestBodyLimit(t *testing.T) {
	h := newTestHandler(t, Deps{})
	big := bytes.Repeat([]byte("a"), maxRequestBodySize+1)
	body := `{"query":"` + string(big) + `"}`
	w := postJSON(t, h, "/v1/ask", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=-1", 20},
		{"limit=abc", 20},
		{"limit=500", 100},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/x?"+tt.query, nil)
		if got := parseIntParam(r, "limit", 20, 100); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
