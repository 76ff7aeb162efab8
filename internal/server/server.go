// Package server hosts an in-memory implementation of the video-task API
// for development and integration testing.
//
// The HTTP surface matches the production backend: cursor pagination with
// filter-context validation, idempotent creation, the unified error
// envelope, and scripted task lifecycle progression.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipforge/vidsync/pkg/task"
)

// Server serves the dev API.
type Server struct {
	host   string
	port   int
	store  *Store
	router chi.Router
	logger *zap.Logger
}

// New creates a server around a store.
func New(host string, port int, store *Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		host:   host,
		port:   port,
		store:  store,
		logger: logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

// ListenAndServe blocks serving the API.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	s.logger.Info("dev server listening", zap.String("addr", s.Addr()))
	return srv.ListenAndServe()
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)

	r.Route("/api/video-tasks", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleGet)
		r.Delete("/{id}", s.handleDelete)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	return r
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// requestID attaches a request id to the context and response, mirroring
// the backend's X-Request-Id middleware.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = "req_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := listQuery{
		limit:  task.DefaultLimit,
		cursor: r.URL.Query().Get("cursor"),
		search: strings.TrimSpace(r.URL.Query().Get("q")),
		status: r.URL.Query().Get("status"),
		sort:   r.URL.Query().Get("sort"),
	}
	if q.sort == "" {
		q.sort = task.SortCreatedDesc
	}
	if q.sort != task.SortCreatedDesc && q.sort != task.SortCreatedAsc {
		s.writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown sort order")
		return
	}
	if q.status != "" && !task.Status(q.status).Valid() {
		s.writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown status filter")
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > task.MaxLimit {
			s.writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR",
				fmt.Sprintf("limit must be between 1 and %d", task.MaxLimit))
			return
		}
		q.limit = n
	}

	if q.cursor != "" {
		cur, err := decodeCursor(q.cursor)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "INVALID_CURSOR", "cursor is malformed or expired")
			return
		}
		// Cursors are bound to the filter context that issued them.
		if cur.Search != q.search || cur.Status != q.status || cur.Sort != q.sort {
			s.writeError(w, r, http.StatusBadRequest, "CURSOR_FILTER_MISMATCH",
				"cursor was issued under different filters")
			return
		}
	}

	records, next, err := s.store.List(q)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "INVALID_CURSOR", "cursor is malformed or expired")
		return
	}
	writeJSON(w, http.StatusOK, task.Page{Data: records, NextCursor: next})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req task.CreateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "request body is not valid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
		return
	}

	rec, replay, err := s.store.Create(req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		s.writeError(w, r, http.StatusConflict, "IDEMPOTENCY_CONFLICT",
			"idempotency key was already used with a different payload")
		return
	}
	status := http.StatusCreated
	if replay {
		status = http.StatusOK
	}
	writeJSON(w, status, rec)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, r, http.StatusNotFound, "NOT_FOUND", "video task not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.store.Delete(chi.URLParam(r, "id")) {
		s.writeError(w, r, http.StatusNotFound, "NOT_FOUND", "video task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// errorBody is the unified error envelope shared with the production API.
type errorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"requestId"`
	Details   map[string]any `json:"details"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	id := requestIDFrom(r.Context())
	s.logger.Debug("request failed",
		zap.String("request_id", id),
		zap.Int("status", status),
		zap.String("code", code))
	writeJSON(w, status, errorBody{
		Code:      code,
		Message:   message,
		RequestID: id,
		Details:   map[string]any{},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
