package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/pcdoctor/internal/api"
	"github.com/ashureev/pcdoctor/internal/config"
	"github.com/ashureev/pcdoctor/internal/domain"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// Loop is the set of loop operations exposed over HTTP.
type Loop interface {
	StartTurn(ctx context.Context, message string, sessionID *string) domain.AgentResponse
	SubmitResult(ctx context.Context, sessionID string, result ExecutionResult) domain.AgentResponse
	ClearSession(ctx context.Context, sessionID string)
	Session(sessionID string) (domain.Session, bool)
	Turns(ctx context.Context, sessionID string) ([]domain.TurnRecord, error)
}

var _ Loop = (*LoopController)(nil)

// Client-supplied ids are only lookup keys and log fields, but still bound them.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// ChatRequest is the body of POST /api/agent/chat.
type ChatRequest struct {
	Message   string  `json:"message"`
	SessionID *string `json:"session_id,omitempty"`
}

// ResultRequest is the body of POST /api/agent/result.
type ResultRequest struct {
	SessionID string  `json:"session_id"`
	Command   string  `json:"command"`
	Output    string  `json:"output"`
	Error     *string `json:"error,omitempty"`
}

// Handler serves the agent loop over HTTP.
type Handler struct {
	loop        Loop
	rateLimiter *RateLimiter
	maxBodySize int64
}

// NewHandler creates a handler. A nil cfg uses built-in limits.
func NewHandler(loop Loop, cfg *config.Config) *Handler {
	rateLimitRequests := 30
	rateLimitWindow := time.Minute
	maxBodySize := int64(defaultMaxRequestBodySize)

	if cfg != nil {
		rateLimitRequests = cfg.RateLimit.RequestsPerWindow
		rateLimitWindow = cfg.RateLimit.WindowDuration
		maxBodySize = cfg.HTTP.MaxRequestBodySize
	}

	return &Handler{
		loop:        loop,
		rateLimiter: NewRateLimiter(rateLimitRequests, rateLimitWindow),
		maxBodySize: maxBodySize,
	}
}

// RegisterRoutes registers agent routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/agent", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Post("/result", h.HandleResult)
		r.Get("/sessions/{sessionID}", h.HandleGetSession)
		r.Delete("/sessions/{sessionID}", h.HandleClearSession)
		r.Get("/sessions/{sessionID}/turns", h.HandleListTurns)
	})
	// Legacy path used by the desktop client.
	r.Post("/chat", h.HandleChat)
}

// Close releases handler resources.
func (h *Handler) Close() {
	h.rateLimiter.Close()
}

// HandleChat handles POST /api/agent/chat requests.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}

	var req ChatRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionID != nil && *req.SessionID == "" {
		req.SessionID = nil
	}
	if req.SessionID != nil && !sessionIDPattern.MatchString(*req.SessionID) {
		api.Error(w, http.StatusBadRequest, "invalid session_id")
		return
	}

	slog.Info("Agent chat request",
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"session_id", derefOr(req.SessionID, ""),
		"message_length", len(req.Message),
	)

	resp := h.loop.StartTurn(r.Context(), req.Message, req.SessionID)
	api.JSON(w, http.StatusOK, resp)
}

// HandleResult handles POST /api/agent/result requests.
func (h *Handler) HandleResult(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}

	var req ResultRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		api.Error(w, http.StatusBadRequest, "session_id is required")
		return
	}

	slog.Info("Agent result submitted",
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"session_id", req.SessionID,
		"command", req.Command,
		"output_length", len(req.Output),
		"failed", req.Error != nil,
	)

	resp := h.loop.SubmitResult(r.Context(), req.SessionID, ExecutionResult{
		Command: req.Command,
		Output:  req.Output,
		Error:   req.Error,
	})
	api.JSON(w, http.StatusOK, resp)
}

// HandleGetSession handles GET /api/agent/sessions/{sessionID}.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loop.Session(chi.URLParam(r, "sessionID"))
	if !ok {
		api.Error(w, http.StatusNotFound, "session not found")
		return
	}
	api.JSON(w, http.StatusOK, session)
}

// HandleClearSession handles DELETE /api/agent/sessions/{sessionID}.
func (h *Handler) HandleClearSession(w http.ResponseWriter, r *http.Request) {
	h.loop.ClearSession(r.Context(), chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

// HandleListTurns handles GET /api/agent/sessions/{sessionID}/turns.
func (h *Handler) HandleListTurns(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	turns, err := h.loop.Turns(r.Context(), sessionID)
	if errors.Is(err, ErrJournalDisabled) {
		api.Error(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		slog.Error("Failed to list turns", "session_id", sessionID, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to list turns")
		return
	}
	if turns == nil {
		turns = []domain.TurnRecord{}
	}
	api.JSON(w, http.StatusOK, turns)
}

func (h *Handler) allow(w http.ResponseWriter, r *http.Request) bool {
	if h.rateLimiter.Allow(clientKey(r)) {
		return true
	}
	api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
	return false
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// clientKey identifies the caller for rate limiting. RemoteAddr has already
// been rewritten by the RealIP middleware when proxy headers are present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
