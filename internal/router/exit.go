package router

import (
	"context"
	"time"

	"github.com/oriontel/dialer-router/internal/ari"
	"github.com/oriontel/dialer-router/internal/domain"
	"github.com/oriontel/dialer-router/internal/metrics"
)

// handleChannelLeftApp removes a caller's waiting-call record when it
// leaves the Stasis application, per the "Caller-leg exit" rule of §4.5.
// It is a no-op if the call was already bridged (removed once, idempotent
// thereafter).
func (r *Router) handleChannelLeftApp(ctx context.Context, ev ari.Event) {
	cc, ok := r.getContext(ev.ChannelID)
	if !ok || cc.Role != domain.RoleCaller {
		return
	}
	removed, err := r.repo.RemoveCallFromQueue(ctx, cc.QueueID, cc.ChannelID)
	if err != nil {
		metrics.EventProcessingErrorsTotal.WithLabelValues(string(ev.Type)).Inc()
		r.logger.Warn().Err(err).Str("channel", ev.ChannelID).Msg("failed to remove call from queue on leave")
		return
	}
	if removed > 0 && cc.CallerState == domain.CallerQueued {
		metrics.CallsAbandonedTotal.WithLabelValues(cc.QueueID).Inc()
	}
}

// handleChannelDestroyed implements the teardown paths of §4.5 for both
// caller and agent-leg channels.
func (r *Router) handleChannelDestroyed(ctx context.Context, ev ari.Event) {
	cc, ok := r.getContext(ev.ChannelID)
	if !ok {
		return
	}

	switch cc.Role {
	case domain.RoleCaller:
		r.handleCallerDestroyed(ctx, cc)
	case domain.RoleAgentLeg:
		r.handleAgentLegDestroyed(ctx, cc)
	}
}

func (r *Router) handleCallerDestroyed(ctx context.Context, cc *domain.CallContext) {
	if _, err := r.repo.RemoveCallFromQueue(ctx, cc.QueueID, cc.ChannelID); err != nil {
		r.logger.Warn().Err(err).Str("channel", cc.ChannelID).Msg("failed to remove destroyed call from queue")
	}
	cc.CallerState = domain.CallerTerminated

	if cc.PairedChannelID != "" {
		if agentCC, ok := r.getContext(cc.PairedChannelID); ok {
			// Caller gone: hang up the agent leg (or leave per media-server
			// policy) and transition the agent per §4.3.
			r.safeHangup(ctx, agentCC.ChannelID)
			r.transitionAgentAfterCall(ctx, agentCC.AgentID, agentCC.QueueID)
			r.dropContext(agentCC.ChannelID)
		}
	}
	r.dropContext(cc.ChannelID)
}

func (r *Router) handleAgentLegDestroyed(ctx context.Context, cc *domain.CallContext) {
	if cc.AgentLegState != domain.AgentLegBridged {
		// Destroyed before bridging: origination cancellation. Restore the
		// agent and re-queue the caller if it is still live.
		if callerCC, ok := r.getContext(cc.PairedChannelID); ok && callerCC.CallerState != domain.CallerTerminated {
			r.requeueCaller(ctx, callerCC)
		}
		r.restoreAgentAvailable(ctx, cc.AgentID)
		r.dropContext(cc.ChannelID)
		return
	}

	// Bridged agent leg destroyed: hang up the caller and wrap up the
	// agent.
	if callerCC, ok := r.getContext(cc.PairedChannelID); ok {
		r.safeHangup(ctx, callerCC.ChannelID)
	}
	r.transitionAgentAfterCall(ctx, cc.AgentID, cc.QueueID)
	r.dropContext(cc.ChannelID)
}

// requeueCaller re-enqueues a caller that was ringing an agent whose leg
// was destroyed before answer/bridge, preserving the original enqueue time
// if one was already carried.
func (r *Router) requeueCaller(ctx context.Context, cc *domain.CallContext) {
	r.enqueueAndHold(ctx, cc)
}

// transitionAgentAfterCall implements the ON_CALL exit transition of
// §4.3: WRAPPING_UP (with a wrap timer) when wrap-up is configured, else
// directly back to AVAILABLE, followed by the de-queue discipline of
// §4.5.
func (r *Router) transitionAgentAfterCall(ctx context.Context, agentID, queueID string) {
	if r.wrapUpSeconds > 0 {
		wrapUntil := time.Now().Add(time.Duration(r.wrapUpSeconds) * time.Second).UnixMilli()
		if err := r.repo.SetAgentStatus(ctx, agentID, domain.AgentWrappingUp, "", wrapUntil); err != nil {
			r.logger.Error().Err(err).Str("agent", agentID).Msg("failed to set agent WRAPPING_UP")
		}
		return
	}
	r.restoreAgentAvailable(ctx, agentID)
	r.DispatchQueuesForAgent(ctx, agentID)
}
