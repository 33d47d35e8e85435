package domain

// CallerState is the caller-leg half of the per-call state machine in §4.5.
type CallerState string

const (
	CallerEntered     CallerState = "ENTERED"
	CallerAnswered    CallerState = "ANSWERED"
	CallerSelecting   CallerState = "SELECTING"
	CallerOriginating CallerState = "ORIGINATING"
	CallerBridging    CallerState = "BRIDGING"
	CallerBridged     CallerState = "BRIDGED"
	CallerQueued      CallerState = "QUEUED"
	CallerTerminated  CallerState = "TERMINATED"
)

// AgentLegState is the agent-leg half of the per-call state machine.
type AgentLegState string

const (
	AgentLegOriginated AgentLegState = "AGENT_ORIGINATED"
	AgentLegAnswered   AgentLegState = "AGENT_ANSWERED"
	AgentLegBridged    AgentLegState = "AGENT_BRIDGED"
	AgentLegGone       AgentLegState = "AGENT_GONE"
)

// ChannelRole distinguishes a caller channel from an agent-leg channel
// inside a CallContext.
type ChannelRole string

const (
	RoleCaller   ChannelRole = "CALLER"
	RoleAgentLeg ChannelRole = "AGENT_LEG"
)

// CallContext is the in-memory-only per-channel routing state described in
// §3 ("Call context"). It is never persisted to the store.
type CallContext struct {
	CallCenterID string
	QueueID      string
	ChannelID    string
	Role         ChannelRole

	CallerState   CallerState
	AgentLegState AgentLegState

	// PairedChannelID is the other leg's channel id once bridged or bound.
	PairedChannelID string

	// AgentID is the agent this call is bound/bridged to, if any.
	AgentID string

	// BridgeID is set once caller and agent leg have been added to a
	// mixing bridge.
	BridgeID string

	CallerNumber string

	// EnqueueTime is carried across re-enqueues so the original wait start
	// is preserved per §4.5's re-queue discipline. Zero until first enqueue.
	EnqueueTime int64
}
