package alerts

import (
	"testing"
	"time"
)

func TestCheckQueueAlertsLongWait(t *testing.T) {
	queues := []QueueSnapshot{
		{QueueID: "Q1", LongestWaitSecs: 30},
		{QueueID: "Q2", LongestWaitSecs: 200},
	}
	got := CheckQueueAlerts(queues, 120*time.Second)
	if len(got) != 1 || got[0].Rule != "queue_long_wait" {
		t.Fatalf("expected one long-wait alert for Q2, got %v", got)
	}
}

func TestCheckAgentAlertsIgnoresRinging(t *testing.T) {
	agents := []AgentSnapshot{
		{AgentID: "A", Status: "RINGING", SecondsInStatus: 5},
		{AgentID: "B", Status: "RINGING", SecondsInStatus: 600},
	}
	got := CheckAgentAlerts(agents)
	if len(got) != 0 {
		t.Fatalf("expected no alerts for RINGING agents, got %v", got)
	}
}

func TestCheckAgentAlertsStuckWrappingUp(t *testing.T) {
	agents := []AgentSnapshot{
		{AgentID: "C", Status: "WRAPPING_UP", SecondsInStatus: 10},
		{AgentID: "D", Status: "WRAPPING_UP", SecondsInStatus: 300},
	}
	got := CheckAgentAlerts(agents)
	if len(got) != 1 || got[0].Severity != SeverityCritical {
		t.Fatalf("expected one critical stuck-wrapping alert for D, got %v", got)
	}
}
