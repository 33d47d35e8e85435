package wrapup

import (
	"context"
	"testing"
	"time"

	"github.com/oriontel/dialer-router/internal/domain"
	"github.com/oriontel/dialer-router/internal/repository"
	"github.com/oriontel/dialer-router/internal/store"
	"github.com/rs/zerolog"
)

type fakeDispatcher struct {
	dispatchedFor []string
}

func (f *fakeDispatcher) DispatchQueuesForAgent(ctx context.Context, agentID string) {
	f.dispatchedFor = append(f.dispatchedFor, agentID)
}

func TestScanOnceElapsesWrapUp(t *testing.T) {
	ctx := context.Background()
	repo := repository.New(store.NewMemoryStore(), "cc1", zerolog.Nop())
	repo.AddAgent(ctx, "A", "Alice", "PJSIP/A", "24/7")
	repo.AgentLogin(ctx, "A", []string{"Q1"}, false, time.Now())

	past := time.Now().Add(-time.Second).UnixMilli()
	repo.SetAgentStatus(ctx, "A", domain.AgentWrappingUp, "", past)

	disp := &fakeDispatcher{}
	sched := New(repo, disp, time.Second, zerolog.Nop())
	sched.scanOnce(ctx)

	a, _ := repo.GetAgentDetails(ctx, "A")
	if a.Status != domain.AgentAvailable {
		t.Errorf("expected agent AVAILABLE after elapsed wrap, got %v", a.Status)
	}
	if len(disp.dispatchedFor) != 1 || disp.dispatchedFor[0] != "A" {
		t.Errorf("expected dispatch triggered for A, got %v", disp.dispatchedFor)
	}
}

func TestScanOnceSkipsUnelapsedWrapUp(t *testing.T) {
	ctx := context.Background()
	repo := repository.New(store.NewMemoryStore(), "cc1", zerolog.Nop())
	repo.AddAgent(ctx, "A", "Alice", "PJSIP/A", "24/7")
	repo.AgentLogin(ctx, "A", []string{"Q1"}, false, time.Now())

	future := time.Now().Add(time.Hour).UnixMilli()
	repo.SetAgentStatus(ctx, "A", domain.AgentWrappingUp, "", future)

	disp := &fakeDispatcher{}
	sched := New(repo, disp, time.Second, zerolog.Nop())
	sched.scanOnce(ctx)

	a, _ := repo.GetAgentDetails(ctx, "A")
	if a.Status != domain.AgentWrappingUp {
		t.Errorf("expected agent to remain WRAPPING_UP, got %v", a.Status)
	}
	if len(disp.dispatchedFor) != 0 {
		t.Errorf("expected no dispatch, got %v", disp.dispatchedFor)
	}
}
