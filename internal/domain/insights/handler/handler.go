// Package handler serves the latest report and the insight agent over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/agent"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/insights"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/report"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/spend"
)

const maxSessions = 256

// ReportService is the part of insights.Service the handler needs.
type ReportService interface {
	Current(ctx context.Context) (*report.Report, error)
	Refresh(ctx context.Context) (*report.Report, error)
	Runs(ctx context.Context, limit int) ([]insights.Run, error)
}

// Asker answers agent questions.
type Asker interface {
	Ask(ctx context.Context, session *agent.Session, question string) (*agent.Answer, error)
}

// Options configure the router.
type Options struct {
	CORSOrigins             []string
	RegenerateRatePerMinute int
	Metrics                 http.Handler // mounted at /metrics when set
}

// Handler implements the HTTP API.
type Handler struct {
	svc        ReportService
	asker      Asker
	regenerate *rate.Limiter
	opts       Options
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*sessionEntry
	order    []uuid.UUID
}

type sessionEntry struct {
	mu      sync.Mutex
	session *agent.Session
}

// New constructs a handler. A nil asker disables the agent route.
func New(svc ReportService, asker Asker, opts Options, logger *slog.Logger) *Handler {
	perMinute := opts.RegenerateRatePerMinute
	if perMinute <= 0 {
		perMinute = 6
	}

	return &Handler{
		svc:        svc,
		asker:      asker,
		regenerate: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		opts:       opts,
		logger:     logger,
		sessions:   make(map[uuid.UUID]*sessionEntry),
	}
}

// Router builds the chi router wrapped in CORS.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/report", h.ReportJSON)
		r.Get("/report.html", h.renderer(report.FormatHTML))
		r.Get("/report.md", h.renderer(report.FormatMarkdown))
		r.Get("/report.xlsx", h.renderer(report.FormatXLSX))
		r.Post("/report/regenerate", h.Regenerate)
		r.Get("/runs", h.Runs)
		if h.asker != nil {
			r.Post("/agent/ask", h.Ask)
		}
	})

	if h.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.opts.Metrics)
	}

	origins := h.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	return c.Handler(r)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReportJSON returns the latest report as JSON.
func (h *Handler) ReportJSON(w http.ResponseWriter, r *http.Request) {
	h.renderer(report.FormatJSON)(w, r)
}

func (h *Handler) renderer(f report.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := h.svc.Current(r.Context())
		if err != nil {
			h.respondServiceError(w, err)
			return
		}

		body, err := report.Render(rep, f)
		if err != nil {
			h.logger.Error("failed to render report", slog.String("format", string(f)), slog.Any("error", err))
			respondError(w, http.StatusInternalServerError, "failed to render report")
			return
		}

		w.Header().Set("Content-Type", f.ContentType())
		if f == report.FormatXLSX {
			w.Header().Set("Content-Disposition", `attachment; filename="campaign-spend.xlsx"`)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

type regenerateResponse struct {
	ReportID     uuid.UUID `json:"report_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	RecordCount  int       `json:"record_count"`
	PublishError string    `json:"publish_error,omitempty"`
}

// Regenerate rebuilds and publishes the report. Calls are rate limited.
func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	if !h.regenerate.Allow() {
		w.Header().Set("Retry-After", "60")
		respondError(w, http.StatusTooManyRequests, "regeneration rate limit exceeded")
		return
	}

	rep, err := h.svc.Refresh(r.Context())
	if rep == nil {
		h.respondServiceError(w, err)
		return
	}

	resp := regenerateResponse{
		ReportID:    rep.ID,
		GeneratedAt: rep.GeneratedAt,
		RecordCount: rep.RecordCount,
	}
	if err != nil {
		resp.PublishError = err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

// Runs lists recent publishes.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

type askRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type askResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	*agent.Answer
}

// Ask forwards a question to the agent within a conversation session.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		respondError(w, http.StatusBadRequest, "question is required")
		return
	}

	entry, err := h.session(req.SessionID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session_id")
		return
	}

	entry.mu.Lock()
	answer, err := h.asker.Ask(r.Context(), entry.session, req.Question)
	entry.mu.Unlock()
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, askResponse{SessionID: entry.session.ID, Answer: answer})
}

// session returns the session with id, or a new one when id is empty or
// unknown. The oldest session is evicted past maxSessions.
func (h *Handler) session(id string) (*sessionEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, err
		}
		if entry, ok := h.sessions[parsed]; ok {
			return entry, nil
		}
	}

	entry := &sessionEntry{session: agent.NewSession()}
	h.sessions[entry.session.ID] = entry
	h.order = append(h.order, entry.session.ID)
	if len(h.order) > maxSessions {
		delete(h.sessions, h.order[0])
		h.order = h.order[1:]
	}
	return entry, nil
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case spend.IsMissingInput(err):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		h.logger.Error("request failed", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
