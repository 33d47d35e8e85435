package router

import (
	"context"
	"time"

	"github.com/oriontel/dialer-router/internal/ari"
	"github.com/oriontel/dialer-router/internal/domain"
	"github.com/oriontel/dialer-router/internal/metrics"
	"github.com/oriontel/dialer-router/internal/selector"
)

// routeRoundRobin implements the ROUND_ROBIN routing loop of §4.5. The
// caller already holds cc.ChannelID's lock.
func (r *Router) routeRoundRobin(ctx context.Context, cc *domain.CallContext) {
	now := time.Now()
	agentID, err := r.selector.Select(ctx, cc.QueueID, now)
	if err != nil {
		// STORE_ERROR during selection is treated as NONE per §7.
		r.logger.Warn().Err(err).Str("queue", cc.QueueID).Msg("selection failed, treating as no agent available")
		agentID = selector.None
	}

	if agentID == selector.None {
		r.enqueueAndHold(ctx, cc)
		return
	}

	agent, err := r.repo.GetAgentDetails(ctx, agentID)
	if err != nil || agent.Endpoint == "" {
		// Agent missing or lacks an endpoint: treat as a failed attempt,
		// do not mutate agent status.
		r.logger.Warn().Str("agent", agentID).Msg("selected agent missing or has no endpoint, re-queueing")
		r.enqueueAndHold(ctx, cc)
		return
	}

	if err := r.repo.SetAgentStatus(ctx, agentID, domain.AgentRinging, cc.ChannelID, 0); err != nil {
		r.logger.Warn().Err(err).Str("agent", agentID).Msg("failed to mark agent ringing, re-queueing caller")
		r.enqueueAndHold(ctx, cc)
		return
	}

	cc.AgentID = agentID
	cc.CallerState = domain.CallerOriginating
	r.putContext(cc)

	agentChannelID, err := r.media.Originate(ctx, ari.OriginateParams{
		Endpoint:      agent.Endpoint,
		CallerID:      cc.CallerNumber,
		App:           r.appName,
		AppArgs:       []string{agentLegArg},
		TimeoutSecond: answerTimeoutSeconds,
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("agent", agentID).Msg("origination failed, restoring agent and re-queueing")
		metrics.OriginationFailuresTotal.WithLabelValues(cc.QueueID).Inc()
		r.restoreAgentAvailable(ctx, agentID)
		r.enqueueAndHold(ctx, cc)
		return
	}
	metrics.CallsRoutedTotal.WithLabelValues(cc.QueueID).Inc()

	agentCC := &domain.CallContext{
		ChannelID:       agentChannelID,
		CallCenterID:    cc.CallCenterID,
		QueueID:         cc.QueueID,
		Role:            domain.RoleAgentLeg,
		AgentLegState:   domain.AgentLegOriginated,
		AgentID:         agentID,
		PairedChannelID: cc.ChannelID,
	}
	r.putContext(agentCC)

	cc.PairedChannelID = agentChannelID
	cc.CallerState = domain.CallerOriginating
	r.putContext(cc)
}

// enqueueAndHold appends cc's waiting-call record to its queue and starts
// on-hold media, preserving any previously-carried EnqueueTime per the
// re-queue discipline of §4.5.
func (r *Router) enqueueAndHold(ctx context.Context, cc *domain.CallContext) {
	if cc.EnqueueTime == 0 {
		cc.EnqueueTime = time.Now().UnixMilli()
	}
	if err := r.repo.AddCallToQueue(ctx, cc.QueueID, domain.WaitingCall{
		ChannelID:    cc.ChannelID,
		CallerNumber: cc.CallerNumber,
		EnqueueTime:  cc.EnqueueTime,
	}); err != nil {
		r.logger.Error().Err(err).Str("channel", cc.ChannelID).Msg("failed to enqueue waiting call")
	}
	if err := r.media.StartHold(ctx, cc.ChannelID); err != nil {
		r.logger.Debug().Err(err).Str("channel", cc.ChannelID).Msg("failed to start on-hold media")
	}
	metrics.CallsQueuedTotal.WithLabelValues(cc.QueueID).Inc()
	cc.CallerState = domain.CallerQueued
	r.putContext(cc)
}

func (r *Router) restoreAgentAvailable(ctx context.Context, agentID string) {
	if err := r.repo.SetAgentStatus(ctx, agentID, domain.AgentAvailable, "", 0); err != nil {
		r.logger.Error().Err(err).Str("agent", agentID).Msg("failed to restore agent to AVAILABLE")
	}
}

// handleAgentLegEnteredApp implements the "agent answers" branch of the
// origination outcome in §4.5.
func (r *Router) handleAgentLegEnteredApp(ctx context.Context, ev ari.Event) {
	agentCC, ok := r.getContext(ev.ChannelID)
	if !ok || agentCC.Role != domain.RoleAgentLeg {
		return
	}

	if err := r.media.Answer(ctx, ev.ChannelID); err != nil {
		r.logger.Warn().Err(err).Str("channel", ev.ChannelID).Msg("agent leg answer failed")
		r.failAgentAnswer(ctx, agentCC)
		return
	}
	agentCC.AgentLegState = domain.AgentLegAnswered
	r.putContext(agentCC)

	callerCC, ok := r.getContext(agentCC.PairedChannelID)
	if !ok || callerCC.CallerState == domain.CallerTerminated {
		// Caller gone before the agent leg could be bridged.
		r.safeHangup(ctx, ev.ChannelID)
		r.restoreAgentAvailable(ctx, agentCC.AgentID)
		r.dropContext(ev.ChannelID)
		return
	}

	bridgeID, err := r.media.CreateBridge(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("bridge creation failed")
		r.failAgentAnswer(ctx, agentCC)
		return
	}

	if err := r.media.AddChannel(ctx, bridgeID, callerCC.ChannelID); err != nil {
		r.logger.Warn().Err(err).Msg("failed to add caller to bridge")
		r.teardownFailedBridge(ctx, bridgeID, callerCC, agentCC)
		return
	}
	if err := r.media.AddChannel(ctx, bridgeID, agentCC.ChannelID); err != nil {
		r.logger.Warn().Err(err).Msg("failed to add agent leg to bridge")
		r.teardownFailedBridge(ctx, bridgeID, callerCC, agentCC)
		return
	}

	callerCC.CallerState = domain.CallerBridged
	callerCC.BridgeID = bridgeID
	r.putContext(callerCC)

	agentCC.AgentLegState = domain.AgentLegBridged
	agentCC.BridgeID = bridgeID
	r.putContext(agentCC)

	if err := r.repo.SetAgentStatus(ctx, agentCC.AgentID, domain.AgentOnCall, callerCC.ChannelID, 0); err != nil {
		r.logger.Error().Err(err).Str("agent", agentCC.AgentID).Msg("failed to mark agent ON_CALL")
	}
}

// failAgentAnswer implements "agent-leg enters app then answer fails":
// hang up the caller, restore the agent, terminate both.
func (r *Router) failAgentAnswer(ctx context.Context, agentCC *domain.CallContext) {
	if callerCC, ok := r.getContext(agentCC.PairedChannelID); ok {
		r.safeHangup(ctx, callerCC.ChannelID)
	}
	r.restoreAgentAvailable(ctx, agentCC.AgentID)
	r.safeHangup(ctx, agentCC.ChannelID)
}

func (r *Router) teardownFailedBridge(ctx context.Context, bridgeID string, callerCC, agentCC *domain.CallContext) {
	if err := r.media.DestroyBridge(ctx, bridgeID); err != nil {
		r.logger.Debug().Err(err).Str("bridge", bridgeID).Msg("bridge destroy failed during teardown")
	}
	r.safeHangup(ctx, callerCC.ChannelID)
	r.safeHangup(ctx, agentCC.ChannelID)
	r.restoreAgentAvailable(ctx, agentCC.AgentID)
}

// DispatchQueue implements the de-queue discipline of §4.5: pop the head
// waiting call, if any, and re-run the routing loop for it. Called after
// login, after wrap-up elapses, and when a call ends with no wrap-up; an
// agent restored to AVAILABLE after a failed attempt does not trigger it.
func (r *Router) DispatchQueue(ctx context.Context, queueID string) {
	wc, err := r.repo.GetNextCallFromQueue(ctx, queueID)
	if err != nil {
		if domain.CodeOf(err) != domain.ErrNotFound {
			r.logger.Warn().Err(err).Str("queue", queueID).Msg("failed to read next waiting call")
		}
		return
	}

	lock := r.lockFor(wc.ChannelID)
	lock.Lock()
	defer lock.Unlock()

	cc, ok := r.getContext(wc.ChannelID)
	if !ok {
		r.logger.Warn().Str("channel", wc.ChannelID).Msg("dequeued call has no in-memory context, dropping")
		return
	}
	if err := r.media.StopHold(ctx, cc.ChannelID); err != nil {
		r.logger.Debug().Err(err).Str("channel", cc.ChannelID).Msg("failed to stop on-hold media")
	}
	cc.EnqueueTime = wc.EnqueueTime
	cc.CallerState = domain.CallerSelecting
	r.putContext(cc)
	r.routeRoundRobin(ctx, cc)
}

// DispatchQueuesForAgent calls DispatchQueue for every queue agentID
// serves, in lexicographic queue-id order, per §4.5's tie-break rule.
func (r *Router) DispatchQueuesForAgent(ctx context.Context, agentID string) {
	agent, err := r.repo.GetAgentDetails(ctx, agentID)
	if err != nil {
		return
	}
	for _, queueID := range sortedQueueIDs(agent.LoggedInQueues) {
		r.DispatchQueue(ctx, queueID)
	}
}
