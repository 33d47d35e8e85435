package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oriontel/dialer-router/internal/ari"
	"github.com/oriontel/dialer-router/internal/domain"
	"github.com/oriontel/dialer-router/internal/repository"
	"github.com/oriontel/dialer-router/internal/selector"
	"github.com/oriontel/dialer-router/internal/store"
	"github.com/rs/zerolog"
)

type fakeMedia struct {
	answered  []string
	hungup    []string
	played    []string
	held      []string
	unheld    []string
	originated []string
	bridged   []string
	addedToBridge []string

	originateErr error
	nextChannelSeq int
}

func (f *fakeMedia) Answer(ctx context.Context, channelID string) error {
	f.answered = append(f.answered, channelID)
	return nil
}
func (f *fakeMedia) Hangup(ctx context.Context, channelID string) error {
	f.hungup = append(f.hungup, channelID)
	return nil
}
func (f *fakeMedia) Play(ctx context.Context, channelID, mediaID string) (string, error) {
	f.played = append(f.played, channelID+":"+mediaID)
	return "playback-1", nil
}
func (f *fakeMedia) StartHold(ctx context.Context, channelID string) error {
	f.held = append(f.held, channelID)
	return nil
}
func (f *fakeMedia) StopHold(ctx context.Context, channelID string) error {
	f.unheld = append(f.unheld, channelID)
	return nil
}
func (f *fakeMedia) Originate(ctx context.Context, params ari.OriginateParams) (string, error) {
	if f.originateErr != nil {
		return "", f.originateErr
	}
	f.nextChannelSeq++
	id := params.Endpoint + "-leg"
	f.originated = append(f.originated, id)
	return id, nil
}
func (f *fakeMedia) CreateBridge(ctx context.Context) (string, error) {
	id := "bridge-1"
	f.bridged = append(f.bridged, id)
	return id, nil
}
func (f *fakeMedia) AddChannel(ctx context.Context, bridgeID, channelID string) error {
	f.addedToBridge = append(f.addedToBridge, bridgeID+"/"+channelID)
	return nil
}
func (f *fakeMedia) DestroyBridge(ctx context.Context, bridgeID string) error {
	return nil
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func setupRouter(t *testing.T) (*Router, *repository.Repository, *fakeMedia) {
	t.Helper()
	repo := repository.New(store.NewMemoryStore(), "cc1", zerolog.Nop())
	sel := selector.New(repo)
	media := &fakeMedia{}
	r := New(repo, sel, media, "dialer", 0, zerolog.Nop())
	return r, repo, media
}

// fixedClockRepo evaluates queue timings at a fixed instant instead of the
// wall clock, so the closed-queue scenario does not depend on when the test
// runs.
type fixedClockRepo struct {
	*repository.Repository
	at time.Time
}

func (f fixedClockRepo) IsQueueActive(ctx context.Context, queueID string, _ time.Time) (bool, error) {
	return f.Repository.IsQueueActive(ctx, queueID, f.at)
}

func TestScenario1ClosedQueueDeflect(t *testing.T) {
	ctx := context.Background()
	repo := repository.New(store.NewMemoryStore(), "cc1", zerolog.Nop())
	media := &fakeMedia{}
	sat1400 := time.Date(2026, 8, 1, 14, 0, 0, 0, time.UTC)
	r := New(fixedClockRepo{repo, sat1400}, selector.New(repo), media, "dialer", 0, zerolog.Nop())

	repo.CreateQueue(ctx, "Q1", "Sales", domain.StrategyRoundRobin, "09:00-17:00;Mon-Fri")

	r.HandleEvent(ctx, ari.Event{
		Type:      ari.EventChannelEnteredApp,
		ChannelID: "chan-1",
		State:     "Ring",
		Vars:      map[string]string{"CALL_CENTER_ID": "cc1", "QUEUE_ID": "Q1"},
	})

	if !contains(media.played, "chan-1:"+ari.NoServicePrompt) {
		t.Errorf("expected no-service prompt played, got %v", media.played)
	}
	if !contains(media.hungup, "chan-1") {
		t.Errorf("expected caller hung up, got %v", media.hungup)
	}
	calls, _ := repo.ListWaitingCalls(ctx, "Q1")
	if len(calls) != 0 {
		t.Errorf("expected no waiting record written, got %v", calls)
	}
}

func enterCaller(ctx context.Context, r *Router, channelID, queueID string) {
	r.HandleEvent(ctx, ari.Event{
		Type:      ari.EventChannelEnteredApp,
		ChannelID: channelID,
		State:     "Ring",
		Vars:      map[string]string{"CALL_CENTER_ID": "cc1", "QUEUE_ID": queueID},
	})
}

func TestScenario2ImmediateRoutingInOrder(t *testing.T) {
	ctx := context.Background()
	r, repo, media := setupRouter(t)

	repo.CreateQueue(ctx, "Q1", "Sales", domain.StrategyRoundRobin, "24/7")
	for _, id := range []string{"A", "B", "C"} {
		repo.AddAgent(ctx, id, id, "PJSIP/"+id, "24/7")
		repo.AgentLogin(ctx, id, []string{"Q1"}, false, time.Now())
	}

	enterCaller(ctx, r, "call-1", "Q1")
	enterCaller(ctx, r, "call-2", "Q1")
	enterCaller(ctx, r, "call-3", "Q1")

	want := []string{"PJSIP/A-leg", "PJSIP/B-leg", "PJSIP/C-leg"}
	if len(media.originated) != 3 {
		t.Fatalf("expected 3 originations, got %v", media.originated)
	}
	for i, w := range want {
		if media.originated[i] != w {
			t.Errorf("origination #%d: expected %s, got %s", i, w, media.originated[i])
		}
	}
}

func TestScenario4QueueThenMatchOnLogin(t *testing.T) {
	ctx := context.Background()
	r, repo, media := setupRouter(t)

	repo.CreateQueue(ctx, "Q1", "Sales", domain.StrategyRoundRobin, "24/7")
	repo.AddAgent(ctx, "A", "Alice", "PJSIP/A", "24/7")

	enterCaller(ctx, r, "call-X", "Q1")

	calls, _ := repo.ListWaitingCalls(ctx, "Q1")
	if len(calls) != 1 || calls[0].ChannelID != "call-X" {
		t.Fatalf("expected call-X enqueued, got %v", calls)
	}
	if !contains(media.held, "call-X") {
		t.Errorf("expected on-hold started for call-X")
	}

	if err := repo.AgentLogin(ctx, "A", []string{"Q1"}, false, time.Now()); err != nil {
		t.Fatalf("login: %v", err)
	}
	r.DispatchQueuesForAgent(ctx, "A")

	if !contains(media.originated, "PJSIP/A-leg") {
		t.Fatalf("expected origination to agent A after login, got %v", media.originated)
	}
	calls, _ = repo.ListWaitingCalls(ctx, "Q1")
	if len(calls) != 0 {
		t.Errorf("expected Q1 empty after dequeue, got %v", calls)
	}

	// Complete the call: agent leg enters app and answers, bridging both.
	r.HandleEvent(ctx, ari.Event{
		Type:      ari.EventChannelEnteredApp,
		ChannelID: "PJSIP/A-leg",
		State:     "Ring",
		Vars:      map[string]string{"marker": "agent_leg"},
	})

	a, _ := repo.GetAgentDetails(ctx, "A")
	if a.Status != domain.AgentOnCall {
		t.Errorf("expected agent ON_CALL after bridge, got %v", a.Status)
	}
}

func TestScenario5OriginationFailureRequeuesKeepingPointer(t *testing.T) {
	ctx := context.Background()
	r, repo, media := setupRouter(t)

	repo.CreateQueue(ctx, "Q1", "Sales", domain.StrategyRoundRobin, "24/7")
	repo.AddAgent(ctx, "A", "Alice", "PJSIP/A", "24/7")
	repo.AgentLogin(ctx, "A", []string{"Q1"}, false, time.Now())

	media.originateErr = errors.New("media error")
	enterCaller(ctx, r, "call-Y", "Q1")

	a, _ := repo.GetAgentDetails(ctx, "A")
	if a.Status != domain.AgentAvailable {
		t.Errorf("expected agent restored to AVAILABLE, got %v", a.Status)
	}
	calls, _ := repo.ListWaitingCalls(ctx, "Q1")
	if len(calls) != 1 || calls[0].ChannelID != "call-Y" {
		t.Fatalf("expected call-Y re-queued, got %v", calls)
	}
	pointer, _ := repo.LastSelectedAgent(ctx, "Q1")
	if pointer != "A" {
		t.Errorf("expected pointer to remain at A, got %s", pointer)
	}
}

func TestScenario6CallerHangsUpWhileQueuedRemovesOnce(t *testing.T) {
	ctx := context.Background()
	r, repo, _ := setupRouter(t)

	repo.CreateQueue(ctx, "Q1", "Sales", domain.StrategyRoundRobin, "24/7")
	enterCaller(ctx, r, "call-Z", "Q1")

	calls, _ := repo.ListWaitingCalls(ctx, "Q1")
	if len(calls) != 1 {
		t.Fatalf("expected call-Z queued, got %v", calls)
	}

	r.HandleEvent(ctx, ari.Event{Type: ari.EventChannelDestroyed, ChannelID: "call-Z"})

	calls, _ = repo.ListWaitingCalls(ctx, "Q1")
	if len(calls) != 0 {
		t.Errorf("expected call removed after destroy, got %v", calls)
	}

	n, err := repo.RemoveCallFromQueue(ctx, "Q1", "call-Z")
	if err != nil || n != 0 {
		t.Errorf("expected second removal to be a no-op returning 0, got %d err=%v", n, err)
	}
}
