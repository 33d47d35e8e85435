package router

import (
	"context"
	"time"

	"github.com/oriontel/dialer-router/internal/ari"
	"github.com/oriontel/dialer-router/internal/domain"
	"github.com/oriontel/dialer-router/internal/metrics"
)

// handleChannelEnteredApp implements the Entry path of §4.5.
func (r *Router) handleChannelEnteredApp(ctx context.Context, ev ari.Event) {
	cc := &domain.CallContext{
		ChannelID:    ev.ChannelID,
		Role:         domain.RoleCaller,
		CallerState:  domain.CallerEntered,
		CallerNumber: ev.CallerNumber,
	}

	if arg, ok := ev.Vars["marker"]; ok && arg == agentLegArg {
		r.handleAgentLegEnteredApp(ctx, ev)
		return
	}

	if ev.State != "Up" {
		if err := r.media.Answer(ctx, ev.ChannelID); err != nil {
			r.logger.Warn().Err(err).Str("channel", ev.ChannelID).Msg("failed to answer caller, terminating")
			return
		}
	}
	cc.CallerState = domain.CallerAnswered

	callCenterID := ev.Vars["CALL_CENTER_ID"]
	queueID := ev.Vars["QUEUE_ID"]
	if callCenterID == "" || queueID == "" {
		r.logger.Warn().Str("channel", ev.ChannelID).Msg("missing CALL_CENTER_ID/QUEUE_ID, disconnecting silently")
		r.safeHangup(ctx, ev.ChannelID)
		return
	}
	cc.CallCenterID = callCenterID
	cc.QueueID = queueID

	now := time.Now()
	active, err := r.repo.IsQueueActive(ctx, queueID, now)
	if err != nil {
		metrics.EventProcessingErrorsTotal.WithLabelValues(string(ev.Type)).Inc()
		r.logger.Warn().Err(err).Str("queue", queueID).Msg("failed to evaluate queue activity, disconnecting")
		r.safeHangup(ctx, ev.ChannelID)
		return
	}
	if !active {
		if _, err := r.media.Play(ctx, ev.ChannelID, ari.NoServicePrompt); err != nil {
			r.logger.Debug().Err(err).Str("channel", ev.ChannelID).Msg("no-service prompt failed, falling through to hangup")
		}
		r.safeHangup(ctx, ev.ChannelID)
		return
	}

	queue, err := r.repo.GetQueueDetails(ctx, queueID)
	if err != nil {
		metrics.EventProcessingErrorsTotal.WithLabelValues(string(ev.Type)).Inc()
		r.logger.Warn().Err(err).Str("queue", queueID).Msg("queue not found, disconnecting")
		r.safeHangup(ctx, ev.ChannelID)
		return
	}

	switch queue.Strategy {
	case domain.StrategyRoundRobin:
		cc.CallerState = domain.CallerSelecting
		r.putContext(cc)
		r.routeRoundRobin(ctx, cc)
	default:
		r.logger.Warn().Str("strategy", string(queue.Strategy)).Str("queue", queueID).Msg("unknown strategy, hanging up")
		r.safeHangup(ctx, ev.ChannelID)
	}
}

// safeHangup hangs up a channel, tolerating the channel already being torn
// down; a MEDIA_ERROR here is logged and swallowed per §7.
func (r *Router) safeHangup(ctx context.Context, channelID string) {
	if err := r.media.Hangup(ctx, channelID); err != nil {
		r.logger.Debug().Err(err).Str("channel", channelID).Msg("hangup failed, already torn down")
	}
	r.dropContext(channelID)
}
