package domain

// AgentStatus is the agent side of the state machine described in §4.3.
type AgentStatus string

const (
	AgentLoggedOut  AgentStatus = "LOGGED_OUT"
	AgentAvailable  AgentStatus = "AVAILABLE"
	AgentRinging    AgentStatus = "RINGING"
	AgentOnCall     AgentStatus = "ON_CALL"
	AgentWrappingUp AgentStatus = "WRAPPING_UP"
)

// Agent is the durable record of one agent.
type Agent struct {
	AgentID        string      `json:"agentId"`
	Name           string      `json:"name"`
	Endpoint       string      `json:"endpoint"`
	ShiftTimings   string      `json:"shiftTimings"`
	Status         AgentStatus `json:"status"`
	LoggedInQueues []string    `json:"loggedInQueues"`

	// BoundChannelID is the caller (or agent-leg) channel currently bound to
	// this agent while RINGING or ON_CALL. Empty otherwise.
	BoundChannelID string `json:"boundChannelId,omitempty"`

	// WrapUntil is the unix-ms deadline for the wrap-up timer, set when the
	// agent enters WRAPPING_UP. Zero when not wrapping.
	WrapUntil int64 `json:"wrapUntil,omitempty"`
}

// IsLoggedIn reports whether the agent is in any serving state.
func (a *Agent) IsLoggedIn() bool {
	return a.Status != AgentLoggedOut
}

// InQueue reports whether queueID is among the agent's logged-in queues.
func (a *Agent) InQueue(queueID string) bool {
	for _, q := range a.LoggedInQueues {
		if q == queueID {
			return true
		}
	}
	return false
}
