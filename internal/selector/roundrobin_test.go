package selector

import (
	"context"
	"testing"
	"time"

	"github.com/oriontel/dialer-router/internal/domain"
	"github.com/oriontel/dialer-router/internal/repository"
	"github.com/oriontel/dialer-router/internal/store"
	"github.com/rs/zerolog"
)

func setupQueueWithAgents(t *testing.T, agentIDs ...string) (*repository.Repository, time.Time) {
	t.Helper()
	repo := repository.New(store.NewMemoryStore(), "cc1", zerolog.Nop())
	ctx := context.Background()
	now := time.Now()

	if _, err := repo.CreateQueue(ctx, "Q1", "Sales", domain.StrategyRoundRobin, "24/7"); err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}
	for _, id := range agentIDs {
		if _, err := repo.AddAgent(ctx, id, id, "PJSIP/"+id, "24/7"); err != nil {
			t.Fatalf("AddAgent %s: %v", id, err)
		}
		if err := repo.AgentLogin(ctx, id, []string{"Q1"}, false, now); err != nil {
			t.Fatalf("AgentLogin %s: %v", id, err)
		}
	}
	return repo, now
}

func TestRoundRobinImmediateRoutingInOrder(t *testing.T) {
	repo, now := setupQueueWithAgents(t, "A", "B", "C")
	ctx := context.Background()
	sel := New(repo)

	want := []string{"A", "B", "C"}
	for i, w := range want {
		got, err := sel.Select(ctx, "Q1", now)
		if err != nil {
			t.Fatalf("Select #%d: %v", i, err)
		}
		if got != w {
			t.Errorf("selection #%d: expected %s, got %s", i, w, got)
		}
	}
}

func TestRoundRobinSkipsNonEligible(t *testing.T) {
	repo, now := setupQueueWithAgents(t, "A", "B", "C")
	ctx := context.Background()
	sel := New(repo)

	if err := repo.SetAgentStatus(ctx, "B", domain.AgentOnCall, "", 0); err != nil {
		t.Fatalf("SetAgentStatus: %v", err)
	}

	want := []string{"A", "C", "A", "C"}
	for i, w := range want {
		got, err := sel.Select(ctx, "Q1", now)
		if err != nil {
			t.Fatalf("Select #%d: %v", i, err)
		}
		if got != w {
			t.Errorf("selection #%d: expected %s, got %s", i, w, got)
		}
	}
}

func TestRoundRobinNoneWhenNobodyEligible(t *testing.T) {
	repo, now := setupQueueWithAgents(t, "A")
	ctx := context.Background()
	sel := New(repo)

	repo.SetAgentStatus(ctx, "A", domain.AgentOnCall, "", 0)
	got, err := sel.Select(ctx, "Q1", now)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got != None {
		t.Errorf("expected None, got %s", got)
	}
}

func TestRoundRobinStalePointerIgnored(t *testing.T) {
	repo, now := setupQueueWithAgents(t, "A", "B")
	ctx := context.Background()
	sel := New(repo)

	// Force the pointer to an agent id that isn't eligible at all.
	if err := repo.SetLastSelectedAgent(ctx, "Q1", "ghost"); err != nil {
		t.Fatalf("SetLastSelectedAgent: %v", err)
	}
	got, err := sel.Select(ctx, "Q1", now)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got != "A" {
		t.Errorf("expected first of sorted eligible list when pointer is stale, got %s", got)
	}
}

func TestRoundRobinFairDistribution(t *testing.T) {
	repo, now := setupQueueWithAgents(t, "A", "B", "C")
	ctx := context.Background()
	sel := New(repo)

	counts := map[string]int{}
	var last string
	const n = 11
	for i := 0; i < n; i++ {
		got, err := sel.Select(ctx, "Q1", now)
		if err != nil {
			t.Fatalf("Select #%d: %v", i, err)
		}
		if got == last {
			t.Errorf("same agent selected twice in a row at iteration %d: %s", i, got)
		}
		last = got
		counts[got]++
	}
	k := 3
	floor := n / k
	ceil := (n + k - 1) / k
	for agent, c := range counts {
		if c != floor && c != ceil {
			t.Errorf("agent %s selected %d times, expected %d or %d", agent, c, floor, ceil)
		}
	}
}
