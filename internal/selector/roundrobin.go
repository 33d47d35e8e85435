// Package selector implements the Agent Selector (C4): round-robin
// agent selection per SPEC_FULL.md §4.4.
package selector

import (
	"context"
	"sort"
	"time"

	"github.com/oriontel/dialer-router/internal/domain"
)

// None is returned by Select when no agent is eligible.
const None = ""

// Repo is the subset of the repository the selector depends on.
type Repo interface {
	LoggedInAgents(ctx context.Context, queueID string) ([]string, error)
	GetAgentDetails(ctx context.Context, agentID string) (*domain.Agent, error)
	IsAgentOnShift(ctx context.Context, agentID string, now time.Time) (bool, error)
	LastSelectedAgent(ctx context.Context, queueID string) (string, error)
	SetLastSelectedAgent(ctx context.Context, queueID, agentID string) error
}

// RoundRobin selects the next eligible agent for a queue, advancing the
// queue's rotation pointer.
type RoundRobin struct {
	repo Repo
}

// New builds a RoundRobin selector over repo.
func New(repo Repo) *RoundRobin {
	return &RoundRobin{repo: repo}
}

// eligibleAgents returns the sorted, deduplicated list of agent ids
// currently eligible for selection in queueID (§4.3's eligibility
// predicate: AVAILABLE, on-shift, and serving this queue).
func (s *RoundRobin) eligibleAgents(ctx context.Context, queueID string, now time.Time) ([]string, error) {
	members, err := s.repo.LoggedInAgents(ctx, queueID)
	if err != nil {
		return nil, err
	}
	eligible := make([]string, 0, len(members))
	for _, agentID := range members {
		a, err := s.repo.GetAgentDetails(ctx, agentID)
		if err != nil {
			continue
		}
		if a.Status != domain.AgentAvailable {
			continue
		}
		onShift, err := s.repo.IsAgentOnShift(ctx, agentID, now)
		if err != nil || !onShift {
			continue
		}
		if !a.InQueue(queueID) {
			continue
		}
		eligible = append(eligible, agentID)
	}
	sort.Strings(eligible)
	return eligible, nil
}

// Select runs the 7-step algorithm of §4.4 and returns the chosen agent id,
// or None if nobody is eligible.
func (s *RoundRobin) Select(ctx context.Context, queueID string, now time.Time) (string, error) {
	eligible, err := s.eligibleAgents(ctx, queueID, now)
	if err != nil {
		return None, err
	}
	if len(eligible) == 0 {
		return None, nil
	}

	pointer, err := s.repo.LastSelectedAgent(ctx, queueID)
	if err != nil {
		return None, err
	}

	selected := eligible[0]
	if pointer != "" {
		for i, a := range eligible {
			if a == pointer {
				selected = eligible[(i+1)%len(eligible)]
				break
			}
		}
	}

	if err := s.repo.SetLastSelectedAgent(ctx, queueID, selected); err != nil {
		return None, err
	}
	return selected, nil
}
