// Package router implements the Call Router (C5): the per-call state
// machine of SPEC_FULL.md §4.5, driven by events from the Channel Event
// Adapter (C6) and coordinating the Repository (C3) and Selector (C4).
package router

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oriontel/dialer-router/internal/ari"
	"github.com/oriontel/dialer-router/internal/domain"
	"github.com/oriontel/dialer-router/internal/metrics"
	"github.com/rs/zerolog"
)

// MediaController is the subset of the ARI action client the router
// depends on, abstracted so tests can substitute a fake.
type MediaController interface {
	Answer(ctx context.Context, channelID string) error
	Hangup(ctx context.Context, channelID string) error
	Play(ctx context.Context, channelID, mediaID string) (string, error)
	StartHold(ctx context.Context, channelID string) error
	StopHold(ctx context.Context, channelID string) error
	Originate(ctx context.Context, params ari.OriginateParams) (string, error)
	CreateBridge(ctx context.Context) (string, error)
	AddChannel(ctx context.Context, bridgeID, channelID string) error
	DestroyBridge(ctx context.Context, bridgeID string) error
}

// Repo is the subset of the repository the router depends on.
type Repo interface {
	GetQueueDetails(ctx context.Context, queueID string) (*domain.Queue, error)
	IsQueueActive(ctx context.Context, queueID string, now time.Time) (bool, error)
	GetAgentDetails(ctx context.Context, agentID string) (*domain.Agent, error)
	SetAgentStatus(ctx context.Context, agentID string, newStatus domain.AgentStatus, boundChannelID string, wrapUntil int64) error
	AddCallToQueue(ctx context.Context, queueID string, call domain.WaitingCall) error
	RemoveCallFromQueue(ctx context.Context, queueID, channelID string) (int, error)
	GetNextCallFromQueue(ctx context.Context, queueID string) (*domain.WaitingCall, error)
}

// Selector is the subset of the agent selector the router depends on.
type Selector interface {
	Select(ctx context.Context, queueID string, now time.Time) (string, error)
}

const (
	answerTimeoutSeconds = 15
	agentLegArg          = "agent_leg"
)

// Router is the Call Router. One Router instance serves one call-center
// scope, per §5's "single logical router task" model.
type Router struct {
	repo     Repo
	selector Selector
	media    MediaController
	appName  string
	logger   zerolog.Logger

	wrapUpSeconds int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	ctxMu    sync.Mutex
	contexts map[string]*domain.CallContext
}

// New builds a Router. wrapUpSeconds configures the default wrap-up
// duration applied after a bridged call ends; 0 skips wrap-up entirely.
func New(repo Repo, selector Selector, media MediaController, appName string, wrapUpSeconds int, logger zerolog.Logger) *Router {
	return &Router{
		repo:          repo,
		selector:      selector,
		media:         media,
		appName:       appName,
		wrapUpSeconds: wrapUpSeconds,
		logger:        logger.With().Str("component", "router").Logger(),
		locks:         map[string]*sync.Mutex{},
		contexts:      map[string]*domain.CallContext{},
	}
}

// lockFor returns the mutex serializing work items for channelID, per §5's
// "serialized per-channelId" requirement. Distinct channel ids never
// contend on the same mutex.
func (r *Router) lockFor(channelID string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	m, ok := r.locks[channelID]
	if !ok {
		m = &sync.Mutex{}
		r.locks[channelID] = m
	}
	return m
}

func (r *Router) getContext(channelID string) (*domain.CallContext, bool) {
	r.ctxMu.Lock()
	defer r.ctxMu.Unlock()
	cc, ok := r.contexts[channelID]
	return cc, ok
}

func (r *Router) putContext(cc *domain.CallContext) {
	r.ctxMu.Lock()
	defer r.ctxMu.Unlock()
	r.contexts[cc.ChannelID] = cc
}

func (r *Router) dropContext(channelID string) {
	r.ctxMu.Lock()
	defer r.ctxMu.Unlock()
	delete(r.contexts, channelID)
	r.locksMu.Lock()
	delete(r.locks, channelID)
	r.locksMu.Unlock()
}

// HandleEvent implements ari.EventProcessor, dispatching each event to the
// channel's serialized work item.
func (r *Router) HandleEvent(ctx context.Context, ev ari.Event) {
	metrics.EventsReceivedTotal.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case ari.EventTransportError, ari.EventTransportClosed:
		// Logged and counted only; the process does not exit. The event
		// source reconnects on its own after a transport error.
		metrics.EventProcessingErrorsTotal.WithLabelValues(string(ev.Type)).Inc()
		r.logger.Error().Str("type", string(ev.Type)).Msg("ari transport event")
		return
	}

	if ev.ChannelID == "" {
		return
	}
	lock := r.lockFor(ev.ChannelID)
	lock.Lock()
	defer lock.Unlock()

	switch ev.Type {
	case ari.EventChannelEnteredApp:
		r.handleChannelEnteredApp(ctx, ev)
	case ari.EventChannelLeftApp:
		r.handleChannelLeftApp(ctx, ev)
	case ari.EventChannelDestroyed:
		r.handleChannelDestroyed(ctx, ev)
	}
}

// sortedQueueIDs returns ids sorted lexicographically, used to break ties
// when one agent serves multiple queues (§4.5's de-queue discipline).
func sortedQueueIDs(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
