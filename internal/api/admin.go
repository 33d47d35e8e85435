// Package api implements the Admin API (C8): queue/agent provisioning and
// operational control, adapted from this stack's admin handler shape.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oriontel/dialer-router/internal/auth"
	"github.com/oriontel/dialer-router/internal/domain"
	"github.com/rs/zerolog"
)

// RequireAdmin only allows requests carrying the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || !auth.HasRole(claims, "admin") {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSupervisorOrAdmin allows the supervisor or admin role.
func RequireSupervisorOrAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || (claims.Role != "admin" && claims.Role != "supervisor") {
			writeError(w, http.StatusForbidden, "supervisor or admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// QueueRepo is the subset of the repository the queue endpoints depend on.
type QueueRepo interface {
	CreateQueue(ctx context.Context, queueID, name string, strategy domain.Strategy, timings string) (*domain.Queue, error)
	GetQueueDetails(ctx context.Context, queueID string) (*domain.Queue, error)
}

// QueueHandler implements the queue-provisioning endpoints.
type QueueHandler struct {
	repo   QueueRepo
	logger zerolog.Logger
}

// NewQueueHandler builds a QueueHandler.
func NewQueueHandler(repo QueueRepo, logger zerolog.Logger) *QueueHandler {
	return &QueueHandler{repo: repo, logger: logger.With().Str("component", "api.queues").Logger()}
}

type createQueueRequest struct {
	QueueID  string `json:"queueId"`
	Name     string `json:"name"`
	Strategy string `json:"strategy"`
	Timings  string `json:"timings"`
}

// CreateQueue handles POST /queues.
func (h *QueueHandler) CreateQueue(w http.ResponseWriter, r *http.Request) {
	var req createQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	strategy := domain.Strategy(req.Strategy)
	if strategy == "" {
		strategy = domain.StrategyRoundRobin
	}
	q, err := h.repo.CreateQueue(r.Context(), req.QueueID, req.Name, strategy, req.Timings)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.Info().Str("queue", q.QueueID).Msg("queue created")
	writeJSON(w, http.StatusCreated, q)
}

// GetQueue handles GET /queues/{queueId}.
func (h *QueueHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	queueID := chi.URLParam(r, "queueId")
	q, err := h.repo.GetQueueDetails(r.Context(), queueID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps a domain.RepoError's code to an HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch domain.CodeOf(err) {
	case domain.ErrNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case domain.ErrInvalidInput:
		writeError(w, http.StatusBadRequest, err.Error())
	case domain.ErrIllegalState:
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
