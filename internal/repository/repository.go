// Package repository implements the Queue/Agent Repository (C3): CRUD and
// status transitions for queues, agents, and queue membership, enforcing
// the data invariants of SPEC_FULL.md §3 on top of the Store adapter (C2).
package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/oriontel/dialer-router/internal/domain"
	"github.com/oriontel/dialer-router/internal/store"
	"github.com/oriontel/dialer-router/internal/timing"
	"github.com/rs/zerolog"
)

// Repository is the Queue/Agent Repository for one call-center scope.
type Repository struct {
	store        store.Store
	callCenterID string
	logger       zerolog.Logger
}

// New builds a Repository bound to one call-center scope.
func New(s store.Store, callCenterID string, logger zerolog.Logger) *Repository {
	return &Repository{store: s, callCenterID: callCenterID, logger: logger}
}

func (r *Repository) CallCenterID() string { return r.callCenterID }

// CreateQueue inserts a queue record and records it in the queue master set.
func (r *Repository) CreateQueue(ctx context.Context, queueID, name string, strategy domain.Strategy, timings string) (*domain.Queue, error) {
	if queueID == "" || name == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "queueId and name are required")
	}
	q := &domain.Queue{
		QueueID:  queueID,
		Name:     name,
		Strategy: strategy,
		Timings:  timings,
		Status:   domain.QueueClosed,
	}
	fields := map[string]string{
		"name":     q.Name,
		"strategy": string(q.Strategy),
		"timings":  q.Timings,
		"status":   string(q.Status),
	}
	if err := r.store.HSet(ctx, queueKey(r.callCenterID, queueID), fields); err != nil {
		return nil, domain.WrapError(domain.ErrStoreError, "failed to write queue hash", err)
	}
	if err := r.store.SAdd(ctx, queuesMasterKey(r.callCenterID), queueID); err != nil {
		return nil, domain.WrapError(domain.ErrStoreError, "failed to register queue in master set", err)
	}
	return q, nil
}

// GetQueueDetails loads one queue record.
func (r *Repository) GetQueueDetails(ctx context.Context, queueID string) (*domain.Queue, error) {
	fields, err := r.store.HGetAll(ctx, queueKey(r.callCenterID, queueID))
	if err == store.ErrNotFound {
		return nil, domain.NewError(domain.ErrNotFound, "queue not found: "+queueID)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreError, "failed to read queue hash", err)
	}
	return &domain.Queue{
		QueueID:  queueID,
		Name:     fields["name"],
		Strategy: domain.Strategy(fields["strategy"]),
		Timings:  fields["timings"],
		Status:   domain.QueueStatus(fields["status"]),
	}, nil
}

// AddAgent inserts an agent record in its initial LOGGED_OUT state.
func (r *Repository) AddAgent(ctx context.Context, agentID, name, endpoint, shiftTimings string) (*domain.Agent, error) {
	if agentID == "" || name == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "agentId and name are required")
	}
	a := &domain.Agent{
		AgentID:        agentID,
		Name:           name,
		Endpoint:       endpoint,
		ShiftTimings:   shiftTimings,
		Status:         domain.AgentLoggedOut,
		LoggedInQueues: []string{},
	}
	if err := r.writeAgent(ctx, a); err != nil {
		return nil, err
	}
	if err := r.store.SAdd(ctx, agentsMasterKey(r.callCenterID), agentID); err != nil {
		return nil, domain.WrapError(domain.ErrStoreError, "failed to register agent in master set", err)
	}
	return a, nil
}

// GetAgentDetails loads one agent record.
func (r *Repository) GetAgentDetails(ctx context.Context, agentID string) (*domain.Agent, error) {
	fields, err := r.store.HGetAll(ctx, agentKey(r.callCenterID, agentID))
	if err == store.ErrNotFound {
		return nil, domain.NewError(domain.ErrNotFound, "agent not found: "+agentID)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreError, "failed to read agent hash", err)
	}
	return decodeAgent(agentID, fields)
}

func decodeAgent(agentID string, fields map[string]string) (*domain.Agent, error) {
	var loggedIn []string
	if raw := fields["loggedInQueues"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &loggedIn); err != nil {
			return nil, domain.WrapError(domain.ErrStoreError, "failed to decode loggedInQueues", err)
		}
	}
	var wrapUntil int64
	if raw := fields["wrapUntil"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &wrapUntil)
	}
	return &domain.Agent{
		AgentID:        agentID,
		Name:           fields["name"],
		Endpoint:       fields["endpoint"],
		ShiftTimings:   fields["shiftTimings"],
		Status:         domain.AgentStatus(fields["status"]),
		LoggedInQueues: loggedIn,
		BoundChannelID: fields["boundChannelId"],
		WrapUntil:      wrapUntil,
	}, nil
}

func (r *Repository) writeAgent(ctx context.Context, a *domain.Agent) error {
	loggedIn, err := json.Marshal(a.LoggedInQueues)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "failed to encode loggedInQueues", err)
	}
	fields := map[string]string{
		"name":           a.Name,
		"endpoint":       a.Endpoint,
		"shiftTimings":   a.ShiftTimings,
		"status":         string(a.Status),
		"loggedInQueues": string(loggedIn),
		"boundChannelId": a.BoundChannelID,
	}
	if a.WrapUntil != 0 {
		fields["wrapUntil"] = strconv.FormatInt(a.WrapUntil, 10)
	} else {
		fields["wrapUntil"] = ""
	}
	if err := r.store.HSet(ctx, agentKey(r.callCenterID, a.AgentID), fields); err != nil {
		return domain.WrapError(domain.ErrStoreError, "failed to write agent hash", err)
	}
	return nil
}

// AgentLogin transitions an agent from LOGGED_OUT to AVAILABLE and joins it
// to each of queueIDs, per §4.2's preconditions.
func (r *Repository) AgentLogin(ctx context.Context, agentID string, queueIDs []string, forceLogin bool, now time.Time) error {
	a, err := r.GetAgentDetails(ctx, agentID)
	if err != nil {
		return err
	}
	if a.Status != domain.AgentLoggedOut {
		return domain.NewError(domain.ErrIllegalState, "agent is not logged out: "+agentID)
	}
	if !forceLogin {
		onShift, err := r.IsAgentOnShift(ctx, agentID, now)
		if err != nil {
			return err
		}
		if !onShift {
			return domain.NewError(domain.ErrIllegalState, "agent is not on shift and forceLogin is false: "+agentID)
		}
	}

	a.Status = domain.AgentAvailable
	a.LoggedInQueues = queueIDs
	if err := r.writeAgent(ctx, a); err != nil {
		return err
	}
	for _, q := range queueIDs {
		if err := r.store.SAdd(ctx, queueLoggedInKey(r.callCenterID, q), agentID); err != nil {
			return domain.WrapError(domain.ErrStoreError, "failed to join queue logged-in set", err)
		}
	}
	return nil
}

// AgentLogout transitions an agent to LOGGED_OUT and removes it from every
// queue's logged-in set.
func (r *Repository) AgentLogout(ctx context.Context, agentID string) error {
	a, err := r.GetAgentDetails(ctx, agentID)
	if err != nil {
		return err
	}
	if a.Status == domain.AgentLoggedOut {
		return domain.NewError(domain.ErrIllegalState, "agent is already logged out: "+agentID)
	}
	for _, q := range a.LoggedInQueues {
		if err := r.store.SRem(ctx, queueLoggedInKey(r.callCenterID, q), agentID); err != nil {
			return domain.WrapError(domain.ErrStoreError, "failed to leave queue logged-in set", err)
		}
	}
	a.Status = domain.AgentLoggedOut
	a.LoggedInQueues = []string{}
	a.BoundChannelID = ""
	a.WrapUntil = 0
	return r.writeAgent(ctx, a)
}

// SetAgentStatus applies a status transition per §4.3. boundChannelID and
// wrapUntil are optional context carried with certain transitions.
func (r *Repository) SetAgentStatus(ctx context.Context, agentID string, newStatus domain.AgentStatus, boundChannelID string, wrapUntil int64) error {
	a, err := r.GetAgentDetails(ctx, agentID)
	if err != nil {
		return err
	}
	a.Status = newStatus
	a.BoundChannelID = boundChannelID
	a.WrapUntil = wrapUntil
	return r.writeAgent(ctx, a)
}

// AddCallToQueue appends a waiting-call record to the tail of queueID's
// waiting sequence.
func (r *Repository) AddCallToQueue(ctx context.Context, queueID string, call domain.WaitingCall) error {
	raw, err := json.Marshal(call)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "failed to encode waiting call", err)
	}
	if err := r.store.RPush(ctx, queueCallsKey(r.callCenterID, queueID), string(raw)); err != nil {
		return domain.WrapError(domain.ErrStoreError, "failed to enqueue call", err)
	}
	return nil
}

// RemoveCallFromQueue removes every occurrence of channelID from queueID's
// waiting sequence and returns the count removed. Idempotent: repeated
// calls after the first successful removal return 0.
func (r *Repository) RemoveCallFromQueue(ctx context.Context, queueID, channelID string) (int, error) {
	records, err := r.store.LRange(ctx, queueCallsKey(r.callCenterID, queueID), 0, -1)
	if err != nil {
		return 0, domain.WrapError(domain.ErrStoreError, "failed to read waiting calls", err)
	}
	removed := 0
	for _, raw := range records {
		var wc domain.WaitingCall
		if err := json.Unmarshal([]byte(raw), &wc); err != nil {
			continue
		}
		if wc.ChannelID != channelID {
			continue
		}
		n, err := r.store.LRem(ctx, queueCallsKey(r.callCenterID, queueID), raw)
		if err != nil {
			return removed, domain.WrapError(domain.ErrStoreError, "failed to remove waiting call", err)
		}
		removed += n
	}
	return removed, nil
}

// GetNextCallFromQueue pops the head waiting-call record, if any.
func (r *Repository) GetNextCallFromQueue(ctx context.Context, queueID string) (*domain.WaitingCall, error) {
	raw, err := r.store.LPop(ctx, queueCallsKey(r.callCenterID, queueID))
	if err == store.ErrNotFound {
		return nil, domain.NewError(domain.ErrNotFound, "queue has no waiting calls: "+queueID)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreError, "failed to pop waiting call", err)
	}
	var wc domain.WaitingCall
	if err := json.Unmarshal([]byte(raw), &wc); err != nil {
		return nil, domain.WrapError(domain.ErrStoreError, "failed to decode waiting call", err)
	}
	return &wc, nil
}

// ListWaitingCalls returns the current waiting sequence for a queue,
// head-first, without popping.
func (r *Repository) ListWaitingCalls(ctx context.Context, queueID string) ([]domain.WaitingCall, error) {
	records, err := r.store.LRange(ctx, queueCallsKey(r.callCenterID, queueID), 0, -1)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreError, "failed to read waiting calls", err)
	}
	out := make([]domain.WaitingCall, 0, len(records))
	for _, raw := range records {
		var wc domain.WaitingCall
		if err := json.Unmarshal([]byte(raw), &wc); err != nil {
			continue
		}
		out = append(out, wc)
	}
	return out, nil
}

// IsQueueActive evaluates the queue's timings rule against now.
func (r *Repository) IsQueueActive(ctx context.Context, queueID string, now time.Time) (bool, error) {
	q, err := r.GetQueueDetails(ctx, queueID)
	if err != nil {
		return false, err
	}
	return timing.Admits(q.Timings, now, r.logger), nil
}

// IsAgentOnShift evaluates the agent's shiftTimings rule against now.
func (r *Repository) IsAgentOnShift(ctx context.Context, agentID string, now time.Time) (bool, error) {
	a, err := r.GetAgentDetails(ctx, agentID)
	if err != nil {
		return false, err
	}
	return timing.Admits(a.ShiftTimings, now, r.logger), nil
}

// LoggedInAgents returns the set of agent ids currently offering to serve
// queueID.
func (r *Repository) LoggedInAgents(ctx context.Context, queueID string) ([]string, error) {
	members, err := r.store.SMembers(ctx, queueLoggedInKey(r.callCenterID, queueID))
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreError, "failed to read logged-in set", err)
	}
	return members, nil
}

// QueueIDs returns every queue id registered in this call-center scope.
func (r *Repository) QueueIDs(ctx context.Context) ([]string, error) {
	return r.store.SMembers(ctx, queuesMasterKey(r.callCenterID))
}

// AgentIDs returns every agent id registered in this call-center scope.
func (r *Repository) AgentIDs(ctx context.Context) ([]string, error) {
	return r.store.SMembers(ctx, agentsMasterKey(r.callCenterID))
}

// LastSelectedAgent returns the round-robin pointer for a queue, or "" if
// unset.
func (r *Repository) LastSelectedAgent(ctx context.Context, queueID string) (string, error) {
	v, err := r.store.Get(ctx, queueLastRRKey(r.callCenterID, queueID))
	if err == store.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", domain.WrapError(domain.ErrStoreError, "failed to read round-robin pointer", err)
	}
	return v, nil
}

// SetLastSelectedAgent writes the round-robin pointer for a queue.
func (r *Repository) SetLastSelectedAgent(ctx context.Context, queueID, agentID string) error {
	if err := r.store.Set(ctx, queueLastRRKey(r.callCenterID, queueID), agentID); err != nil {
		return domain.WrapError(domain.ErrStoreError, "failed to write round-robin pointer", err)
	}
	return nil
}

// ReconcileAgentMembership re-derives every queue's logged-in set membership
// for the given agent from its loggedInQueues/status fields, restoring
// invariant (2) after a partially-applied login/logout mutation (§4.2,
// §9 "Atomicity gaps").
func (r *Repository) ReconcileAgentMembership(ctx context.Context, agentID string) error {
	a, err := r.GetAgentDetails(ctx, agentID)
	if err != nil {
		return err
	}
	queueIDs, err := r.QueueIDs(ctx)
	if err != nil {
		return err
	}
	wantQueues := map[string]bool{}
	if a.IsLoggedIn() {
		for _, q := range a.LoggedInQueues {
			wantQueues[q] = true
		}
	}
	for _, queueID := range queueIDs {
		members, err := r.LoggedInAgents(ctx, queueID)
		if err != nil {
			continue
		}
		isMember := false
		for _, m := range members {
			if m == agentID {
				isMember = true
				break
			}
		}
		switch {
		case wantQueues[queueID] && !isMember:
			_ = r.store.SAdd(ctx, queueLoggedInKey(r.callCenterID, queueID), agentID)
		case !wantQueues[queueID] && isMember:
			_ = r.store.SRem(ctx, queueLoggedInKey(r.callCenterID, queueID), agentID)
		}
	}
	return nil
}
