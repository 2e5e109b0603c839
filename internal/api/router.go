package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/kalambet/persona/internal/agent"
	"github.com/kalambet/persona/internal/profile"
	"github.com/kalambet/persona/internal/resolver"
	"github.com/kalambet/persona/internal/session"
	"github.com/kalambet/persona/internal/storage"
)

const maxRequestBodySize = 64 << 10 // 64KB

// Replier produces the assistant's answer to one message.
type Replier interface {
	Reply(ctx context.Context, message string) (string, error)
}

// SessionLister lists known conversation threads.
type SessionLister interface {
	ListSessions(limit int) ([]storage.Session, error)
}

// Deps holds the collaborators of the HTTP API. Agent and Store are
// optional; the endpoints that need them answer 503 when absent.
type Deps struct {
	Resolver    *resolver.Resolver
	Source      profile.Source
	Agent       Replier
	Sessions    *session.Manager
	Store       SessionLister
	Token       string
	ChatLimiter *rate.Limiter
}

type AskRequest struct {
	Query string `json:"query"`
}

type AskResponse struct {
	Kind   resolver.Kind  `json:"kind"`
	Stage  resolver.Stage `json:"stage"`
	Field  string         `json:"field,omitempty"`
	Query  string         `json:"query"`
	Result any            `json:"result"`
}

type ChatRequest struct {
	Message   string `json:"message"`
	MessageID string `json:"message_id,omitempty"`
	ThreadID  string `json:"thread_id,omitempty"`
}

type ChatResponse struct {
	Reply    string `json:"reply"`
	ThreadID string `json:"thread_id"`
	Turn     int    `json:"turn"`
}

// NewHandler returns the HTTP API.
func NewHandler(deps Deps) http.Handler {
	if deps.Sessions == nil {
		deps.Sessions = session.NewManager(nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/ask", handleAsk(deps))
		r.With(RateLimit(deps.ChatLimiter)).Post("/chat", handleChat(deps))
		r.Get("/keywords", handleKeywords(deps))
		r.With(BearerAuth(deps.Token)).Get("/sessions", handleListSessions(deps))
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		res := deps.Resolver.Lookup(r.Context(), deps.Source, req.Query)

		status := http.StatusOK
		if res.Kind == resolver.KindFetchError {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, AskResponse{
			Kind:   res.Kind,
			Stage:  res.Stage,
			Field:  res.Field,
			Query:  res.Query,
			Result: res.Payload(),
		})
	}
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Agent == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "chat is not available: no language model configured")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		threadID := session.ThreadID(req.ThreadID, req.MessageID)

		reply, err := deps.Agent.Reply(r.Context(), req.Message)
		if errors.Is(err, agent.ErrEmptyMessage) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}
		if err != nil {
			slog.Error("chat reply failed", "thread_id", threadID, "error", err)
			httpError(w, http.StatusBadGateway, "api_error", "model error: %v", err)
			return
		}

		sess, err := deps.Sessions.Record(threadID, "")
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record session: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, ChatResponse{
			Reply:    reply,
			ThreadID: sess.ThreadID,
			Turn:     sess.Turns,
		})
	}
}

func handleKeywords(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Resolver.Keywords().Entries())
	}
}

func handleListSessions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "session registry is not available")
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)

		sessions, err := deps.Store.ListSessions(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list sessions: %v", err)
			return
		}
		if sessions == nil {
			sessions = []storage.Session{}
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
