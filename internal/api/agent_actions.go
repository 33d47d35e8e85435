package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oriontel/dialer-router/internal/ari"
	"github.com/oriontel/dialer-router/internal/domain"
	"github.com/rs/zerolog"
)

// AgentRepo is the subset of the repository the agent endpoints depend on.
type AgentRepo interface {
	AddAgent(ctx context.Context, agentID, name, endpoint, shiftTimings string) (*domain.Agent, error)
	GetAgentDetails(ctx context.Context, agentID string) (*domain.Agent, error)
	AgentLogin(ctx context.Context, agentID string, queueIDs []string, forceLogin bool, now time.Time) error
	AgentLogout(ctx context.Context, agentID string) error
	ReconcileAgentMembership(ctx context.Context, agentID string) error
}

// Dispatcher is implemented by the Call Router to resume queue dispatch
// after an agent becomes AVAILABLE via login, per the de-queue discipline
// of §4.5.
type Dispatcher interface {
	DispatchQueuesForAgent(ctx context.Context, agentID string)
}

// AgentHandler implements the agent-provisioning and login/logout
// endpoints.
type AgentHandler struct {
	repo       AgentRepo
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// NewAgentHandler builds an AgentHandler.
func NewAgentHandler(repo AgentRepo, dispatcher Dispatcher, logger zerolog.Logger) *AgentHandler {
	return &AgentHandler{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "api.agents").Logger(),
	}
}

type createAgentRequest struct {
	AgentID      string `json:"agentId"`
	Name         string `json:"name"`
	Endpoint     string `json:"endpoint"`
	ShiftTimings string `json:"shiftTimings"`
}

// CreateAgent handles POST /agents.
func (h *AgentHandler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a, err := h.repo.AddAgent(r.Context(), req.AgentID, req.Name, req.Endpoint, req.ShiftTimings)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.Info().Str("agent", a.AgentID).Msg("agent created")
	writeJSON(w, http.StatusCreated, a)
}

// GetAgent handles GET /agents/{agentId}.
func (h *AgentHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	a, err := h.repo.GetAgentDetails(r.Context(), agentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type loginRequest struct {
	QueueIDs   []string `json:"queueIds"`
	ForceLogin bool     `json:"forceLogin"`
}

// Login handles POST /agents/{agentId}/login. On success it triggers
// dispatch for every queue the agent just joined, so calls already
// waiting are routed immediately instead of waiting for the next
// organic event.
func (h *AgentHandler) Login(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.repo.AgentLogin(r.Context(), agentID, req.QueueIDs, req.ForceLogin, time.Now()); err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.Info().Str("agent", agentID).Strs("queues", req.QueueIDs).Msg("agent logged in")
	h.dispatcher.DispatchQueuesForAgent(r.Context(), agentID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged in", "agentId": agentID})
}

// Logout handles POST /agents/{agentId}/logout.
func (h *AgentHandler) Logout(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	if err := h.repo.AgentLogout(r.Context(), agentID); err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.Info().Str("agent", agentID).Msg("agent logged out")
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out", "agentId": agentID})
}

// Reconcile handles POST /agents/{agentId}/reconcile, triggering a
// queue-membership repair pass for the named agent (§9 "Atomicity gaps").
func (h *AgentHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	if err := h.repo.ReconcileAgentMembership(r.Context(), agentID); err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.Info().Str("agent", agentID).Msg("agent membership reconciled")
	writeJSON(w, http.StatusOK, map[string]string{"message": "reconciled", "agentId": agentID})
}

// EventProcessor is implemented by the Call Router to accept synthetic
// events, mirroring ari.EventProcessor.
type EventProcessor interface {
	HandleEvent(ctx context.Context, ev ari.Event)
}

// TestEventHandler exposes an unauthenticated endpoint for injecting
// synthetic channel events into the router, used by integration tests that
// cannot drive a live media server.
type TestEventHandler struct {
	processor EventProcessor
	logger    zerolog.Logger
}

// NewTestEventHandler builds a TestEventHandler.
func NewTestEventHandler(processor EventProcessor, logger zerolog.Logger) *TestEventHandler {
	return &TestEventHandler{processor: processor, logger: logger.With().Str("component", "api.test_events").Logger()}
}

// Inject handles POST /internal/test-events.
func (h *TestEventHandler) Inject(w http.ResponseWriter, r *http.Request) {
	var ev ari.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event body")
		return
	}
	h.logger.Debug().Str("type", string(ev.Type)).Str("channel", ev.ChannelID).Msg("synthetic event injected")
	h.processor.HandleEvent(r.Context(), ev)
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "accepted"})
}
