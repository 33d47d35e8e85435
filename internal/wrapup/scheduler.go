// Package wrapup implements the Wrap-up Scheduler (C7): a background timer
// that elapses WRAPPING_UP agents back to AVAILABLE and triggers the
// de-queue discipline of SPEC_FULL.md §4.5.
package wrapup

import (
	"context"
	"time"

	"github.com/oriontel/dialer-router/internal/domain"
	"github.com/rs/zerolog"
)

// Repo is the subset of the repository the scheduler depends on.
type Repo interface {
	AgentIDs(ctx context.Context) ([]string, error)
	GetAgentDetails(ctx context.Context, agentID string) (*domain.Agent, error)
	SetAgentStatus(ctx context.Context, agentID string, newStatus domain.AgentStatus, boundChannelID string, wrapUntil int64) error
}

// Dispatcher is the subset of the router the scheduler depends on.
type Dispatcher interface {
	DispatchQueuesForAgent(ctx context.Context, agentID string)
}

// Scheduler ticks on a fixed interval, scanning for agents whose wrap
// timer has elapsed.
type Scheduler struct {
	repo       Repo
	dispatcher Dispatcher
	interval   time.Duration
	logger     zerolog.Logger
}

// New builds a Scheduler.
func New(repo Repo, dispatcher Dispatcher, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		repo:       repo,
		dispatcher: dispatcher,
		interval:   interval,
		logger:     logger.With().Str("component", "wrapup").Logger(),
	}
}

// Start runs the scan loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("wrap-up scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("wrap-up scheduler stopped")
			return

		case <-ticker.C:
			s.scanOnce(ctx)
		}
	}
}

func (s *Scheduler) scanOnce(ctx context.Context) {
	agentIDs, err := s.repo.AgentIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list agents")
		return
	}

	now := time.Now().UnixMilli()
	for _, agentID := range agentIDs {
		agent, err := s.repo.GetAgentDetails(ctx, agentID)
		if err != nil {
			continue
		}
		if agent.Status != domain.AgentWrappingUp {
			continue
		}
		if agent.WrapUntil > now {
			continue
		}

		if err := s.repo.SetAgentStatus(ctx, agentID, domain.AgentAvailable, "", 0); err != nil {
			s.logger.Error().Err(err).Str("agent", agentID).Msg("failed to elapse wrap-up")
			continue
		}
		s.logger.Debug().Str("agent", agentID).Msg("wrap-up elapsed, agent available")
		s.dispatcher.DispatchQueuesForAgent(ctx, agentID)
	}
}
