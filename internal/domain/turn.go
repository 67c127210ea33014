package domain

import "time"

// Entry names the loop operation that produced a turn.
type Entry string

const (
	EntryStart  Entry = "start"
	EntrySubmit Entry = "submit"
)

// TurnRecord is an audit entry for one completed turn.
type TurnRecord struct {
	SessionID     string           `json:"session_id"`
	Iteration     int              `json:"iteration"`
	Entry         Entry            `json:"entry"`
	UserText      string           `json:"user_text"`
	AgentText     string           `json:"agent_text"`
	LoopStatus    LoopStatus       `json:"loop_status"`
	BlockerReason *string          `json:"blocker_reason,omitempty"`
	Proposal      *CommandProposal `json:"proposal,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}
