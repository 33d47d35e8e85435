// Package alerts evaluates queue-health and agent-health conditions for
// the Supervisor Live Feed (C10), annotating periodic snapshots with
// long-wait and stuck-wrap-up conditions.
package alerts

import (
	"fmt"
	"time"
)

// Severity classifies how urgently an alert needs attention.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one condition surfaced to supervisors.
type Alert struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// QueueSnapshot is the minimal queue data the checker needs.
type QueueSnapshot struct {
	QueueID         string
	LongestWaitSecs int
}

// AgentSnapshot is the minimal agent data the checker needs.
type AgentSnapshot struct {
	AgentID         string
	Status          string
	SecondsInStatus int
}

const stuckWrappingThreshold = 2 * time.Minute

// CheckQueueAlerts evaluates the long-wait rule for a slice of queues.
func CheckQueueAlerts(queues []QueueSnapshot, threshold time.Duration) []Alert {
	var out []Alert
	for _, q := range queues {
		dur := time.Duration(q.LongestWaitSecs) * time.Second
		if dur > threshold {
			out = append(out, Alert{
				Rule:     "queue_long_wait",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("%s waiting %s", q.QueueID, formatDuration(dur)),
			})
		}
	}
	return out
}

// CheckAgentAlerts evaluates the stuck-wrapping-up rule for a slice of
// agents. There is no stuck-ringing rule: see DESIGN.md "Known
// simplifications" for why the store schema can't support one.
func CheckAgentAlerts(agents []AgentSnapshot) []Alert {
	var out []Alert
	for _, a := range agents {
		dur := time.Duration(a.SecondsInStatus) * time.Second

		if a.Status == "WRAPPING_UP" && dur > stuckWrappingThreshold {
			out = append(out, Alert{
				Rule:     "agent_stuck_wrapping_up",
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("%s wrapping up for %s", a.AgentID, formatDuration(dur)),
			})
		}
	}
	return out
}

func formatDuration(d time.Duration) string {
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if mins >= 60 {
		hours := mins / 60
		mins = mins % 60
		return fmt.Sprintf("%dh%dm", hours, mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
