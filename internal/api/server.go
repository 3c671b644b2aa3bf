package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/bailiff/internal/calendar"
	"github.com/MikeSquared-Agency/bailiff/internal/classifier"
	"github.com/MikeSquared-Agency/bailiff/internal/notice"
	"github.com/MikeSquared-Agency/bailiff/internal/processor"
	"github.com/MikeSquared-Agency/bailiff/internal/reconciler"
	"github.com/MikeSquared-Agency/bailiff/internal/store"
)

const (
	maxBodyBytes     = 1 << 20
	defaultListLimit = 50
	maxListLimit     = 500
)

// Service runs notices through the pipeline.
type Service interface {
	Ingest(ctx context.Context, raw, source string) (*processor.Result, error)
	Stats() map[string]int
}

// NoticeReader reads stored notices and the attention queue.
type NoticeReader interface {
	GetNotice(ctx context.Context, id uuid.UUID) (*store.NoticeRecord, error)
	ListAttention(ctx context.Context, limit int) ([]store.AttentionItem, error)
}

type Server struct {
	router  *chi.Mux
	port    int
	http    *http.Server
	service Service
	parser  *notice.Parser
	notices NoticeReader
	logger  *slog.Logger
}

// NoticeRequest is the body of the notice endpoints.
type NoticeRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// NewServer builds the HTTP API. notices may be nil when no database is
// configured; the endpoints that need it then answer 503.
func NewServer(port int, apiToken string, svc Service, parser *notice.Parser, notices NoticeReader, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		port:    port,
		service: svc,
		parser:  parser,
		notices: notices,
		logger:  logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/bailiff/status", s.status)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/notices", s.ingestNotice)
		r.Post("/notices/parse", s.parseNotice)
		r.Post("/classify", s.classify)
		r.Get("/notices/{id}", s.getNotice)
		r.Get("/notices/{id}/hearing.ics", s.noticeICS)
		r.Get("/attention", s.listAttention)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":    "bailiff",
		"status":   "ok",
		"database": s.notices != nil,
		"outcomes": s.service.Stats(),
	})
}

// ingestNotice handles POST /api/v1/notices
func (s *Server) ingestNotice(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeNotice(w, r)
	if !ok {
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	res, err := s.service.Ingest(r.Context(), req.Text, req.Source)
	if err != nil {
		if errors.Is(err, notice.ErrMissingRequiredField) {
			writeParseError(w, err)
			return
		}
		s.logger.Error("ingest failed", "error", err)
		writeError(w, http.StatusInternalServerError, "ingest failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseNotice handles POST /api/v1/notices/parse. Nothing is stored or
// sent to the calendar.
func (s *Server) parseNotice(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeNotice(w, r)
	if !ok {
		return
	}
	n, err := s.parser.Parse(req.Text)
	if err != nil {
		writeParseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) classify(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeNotice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, classifier.Classify(req.Text))
}

func (s *Server) getNotice(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadNotice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// noticeICS handles GET /api/v1/notices/{id}/hearing.ics
func (s *Server) noticeICS(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadNotice(w, r)
	if !ok {
		return
	}
	if rec.Notice == nil || rec.Notice.HearingDate == nil {
		writeError(w, http.StatusConflict, "notice has no hearing date")
		return
	}

	ev := reconciler.BuildEvent(rec.Notice, s.parser.Location())
	ev.ID = rec.ID.String()
	ev.Status = calendar.StatusConfirmed

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="hearing-%s.ics"`, rec.ID))
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, calendar.ExportICS([]calendar.Event{ev}, rec.UpdatedAt))
}

// listAttention handles GET /api/v1/attention?limit=N
func (s *Server) listAttention(w http.ResponseWriter, r *http.Request) {
	if s.notices == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	items, err := s.notices.ListAttention(r.Context(), limit)
	if err != nil {
		s.logger.Error("list attention failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list attention failed")
		return
	}
	if items == nil {
		items = []store.AttentionItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (s *Server) loadNotice(w http.ResponseWriter, r *http.Request) (*store.NoticeRecord, bool) {
	if s.notices == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notice id")
		return nil, false
	}

	rec, err := s.notices.GetNotice(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "notice not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get notice failed", "notice_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "get notice failed")
		return nil, false
	}
	return rec, true
}

func decodeNotice(w http.ResponseWriter, r *http.Request) (NoticeRequest, bool) {
	var req NoticeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return req, false
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return req, false
	}
	return req, true
}

func writeParseError(w http.ResponseWriter, err error) {
	body := map[string]string{"error": err.Error()}
	var mf *notice.MissingFieldError
	if errors.As(err, &mf) {
		body["field"] = mf.Field
	}
	writeJSON(w, http.StatusUnprocessableEntity, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
