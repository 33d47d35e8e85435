package live

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oriontel/dialer-router/internal/alerts"
	"github.com/oriontel/dialer-router/internal/domain"
	"github.com/oriontel/dialer-router/internal/metrics"
	"github.com/rs/zerolog"
)

// Repo is the subset of the repository the snapshot broadcaster depends
// on.
type Repo interface {
	QueueIDs(ctx context.Context) ([]string, error)
	GetQueueDetails(ctx context.Context, queueID string) (*domain.Queue, error)
	ListWaitingCalls(ctx context.Context, queueID string) ([]domain.WaitingCall, error)
	AgentIDs(ctx context.Context) ([]string, error)
	GetAgentDetails(ctx context.Context, agentID string) (*domain.Agent, error)
}

// QueueView is one queue's snapshot row.
type QueueView struct {
	QueueID         string `json:"queueId"`
	Name            string `json:"name"`
	Waiting         int    `json:"waiting"`
	LongestWaitSecs int    `json:"longestWaitSecs"`
}

// AgentView is one agent's snapshot row.
type AgentView struct {
	AgentID string `json:"agentId"`
	Status  string `json:"status"`
}

// Snapshot is the payload broadcast to supervisor clients every tick.
type Snapshot struct {
	GeneratedAt int64          `json:"generatedAt"`
	Queues      []QueueView    `json:"queues"`
	Agents      []AgentView    `json:"agents"`
	Alerts      []alerts.Alert `json:"alerts"`
}

// Aggregator ticks on a fixed interval, building and broadcasting a
// Snapshot of repository state, mirroring this stack's widget-aggregator
// broadcast loop.
type Aggregator struct {
	repo                 Repo
	hub                  *Hub
	interval             time.Duration
	longWaitAlertSeconds int
	logger               zerolog.Logger
}

// NewAggregator builds an Aggregator.
func NewAggregator(repo Repo, hub *Hub, interval time.Duration, longWaitAlertSeconds int, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		repo:                 repo,
		hub:                  hub,
		interval:             interval,
		longWaitAlertSeconds: longWaitAlertSeconds,
		logger:               logger.With().Str("component", "live.aggregator").Logger(),
	}
}

// Start runs the tick loop until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info().Dur("interval", a.interval).Msg("live snapshot aggregator started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("live snapshot aggregator stopped")
			return

		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Aggregator) tick(ctx context.Context) {
	snapshot, err := a.buildSnapshot(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to build snapshot")
		return
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to marshal snapshot")
		return
	}
	a.hub.Broadcast(data)
}

func (a *Aggregator) buildSnapshot(ctx context.Context) (*Snapshot, error) {
	queueIDs, err := a.repo.QueueIDs(ctx)
	if err != nil {
		return nil, err
	}

	queueViews := make([]QueueView, 0, len(queueIDs))
	queueAlertInputs := make([]alerts.QueueSnapshot, 0, len(queueIDs))
	now := time.Now().UnixMilli()

	for _, queueID := range queueIDs {
		q, err := a.repo.GetQueueDetails(ctx, queueID)
		if err != nil {
			continue
		}
		waiting, err := a.repo.ListWaitingCalls(ctx, queueID)
		if err != nil {
			continue
		}
		longest := 0
		if len(waiting) > 0 {
			longest = int((now - waiting[0].EnqueueTime) / 1000)
		}
		queueViews = append(queueViews, QueueView{
			QueueID:         queueID,
			Name:            q.Name,
			Waiting:         len(waiting),
			LongestWaitSecs: longest,
		})
		queueAlertInputs = append(queueAlertInputs, alerts.QueueSnapshot{
			QueueID:         queueID,
			LongestWaitSecs: longest,
		})
		metrics.QueueDepth.WithLabelValues(queueID).Set(float64(len(waiting)))
	}

	agentIDs, err := a.repo.AgentIDs(ctx)
	if err != nil {
		return nil, err
	}
	agentViews := make([]AgentView, 0, len(agentIDs))
	agentAlertInputs := make([]alerts.AgentSnapshot, 0, len(agentIDs))
	availableByQueue := make(map[string]int, len(queueIDs))
	for _, agentID := range agentIDs {
		ag, err := a.repo.GetAgentDetails(ctx, agentID)
		if err != nil {
			continue
		}
		agentViews = append(agentViews, AgentView{AgentID: agentID, Status: string(ag.Status)})
		if ag.Status == domain.AgentAvailable {
			for _, q := range ag.LoggedInQueues {
				availableByQueue[q]++
			}
		}

		secondsInStatus := 0
		if ag.Status == domain.AgentWrappingUp && ag.WrapUntil > 0 {
			secondsInStatus = int((now - ag.WrapUntil) / 1000)
			if secondsInStatus < 0 {
				secondsInStatus = 0
			}
		}
		agentAlertInputs = append(agentAlertInputs, alerts.AgentSnapshot{
			AgentID:         agentID,
			Status:          string(ag.Status),
			SecondsInStatus: secondsInStatus,
		})
	}

	for _, queueID := range queueIDs {
		metrics.AgentsAvailable.WithLabelValues(queueID).Set(float64(availableByQueue[queueID]))
	}

	threshold := time.Duration(a.longWaitAlertSeconds) * time.Second
	var allAlerts []alerts.Alert
	allAlerts = append(allAlerts, alerts.CheckQueueAlerts(queueAlertInputs, threshold)...)
	allAlerts = append(allAlerts, alerts.CheckAgentAlerts(agentAlertInputs)...)

	return &Snapshot{
		GeneratedAt: now,
		Queues:      queueViews,
		Agents:      agentViews,
		Alerts:      allAlerts,
	}, nil
}
