package domain

// Severity classifies the impact of a proposed command.
type Severity string

const (
	// SeverityLow is a read-only diagnostic command.
	SeverityLow Severity = "low"
	// SeverityHigh is a command that modifies system state.
	SeverityHigh Severity = "high"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s == SeverityLow || s == SeverityHigh
}

// LoopStatus is the analyzer's verdict on whether the loop should go on.
type LoopStatus string

const (
	LoopContinue LoopStatus = "continue"
	LoopBlocked  LoopStatus = "blocked"
	LoopDone     LoopStatus = "done"
)

// Valid reports whether l is a known loop status.
func (l LoopStatus) Valid() bool {
	switch l {
	case LoopContinue, LoopBlocked, LoopDone:
		return true
	}
	return false
}

// SessionStatus maps a loop status onto the session lifecycle.
func (l LoopStatus) SessionStatus() Status {
	switch l {
	case LoopBlocked:
		return StatusBlocked
	case LoopDone:
		return StatusDone
	default:
		return StatusActive
	}
}

// CommandProposal is a candidate command for external execution.
type CommandProposal struct {
	Command  string   `json:"command"`
	Severity Severity `json:"severity"`
	Reason   string   `json:"reason"`
	Timeout  int      `json:"timeout"` // seconds
}

// Decision is the structured result of one analyzer call.
type Decision struct {
	Message       string           `json:"message"`
	Proposal      *CommandProposal `json:"proposal,omitempty"`
	LoopStatus    LoopStatus       `json:"loop_status"`
	BlockerReason *string          `json:"blocker_reason,omitempty"`
}

// AgentResponse is the wire contract returned for every loop call.
// Optional fields are omitted from JSON when absent.
type AgentResponse struct {
	Message        string           `json:"message"`
	Proposal       *CommandProposal `json:"proposal,omitempty"`
	SessionID      *string          `json:"session_id,omitempty"`
	LoopStatus     LoopStatus       `json:"loop_status"`
	IterationCount int              `json:"iteration_count"`
	BlockerReason  *string          `json:"blocker_reason,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
