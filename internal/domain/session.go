// Package domain contains core domain types for the PC Doctor agent.
package domain

import (
	"time"
)

// DefaultMaxIterations bounds the number of analyzer turns per session.
const DefaultMaxIterations = 10

// Role identifies who authored a transcript entry.
type Role string

const (
	// RoleUser marks entries written by the user or by a command execution report.
	RoleUser Role = "user"
	// RoleAgent marks entries produced by the analyzer.
	RoleAgent Role = "agent"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAgent
}

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
	StatusDone    Status = "done"
)

// Terminal returns true for statuses that stop the loop.
func (s Status) Terminal() bool {
	return s == StatusBlocked || s == StatusDone
}

// Message is a single entry in the session transcript.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Session holds one conversation's transcript and iteration state.
type Session struct {
	ID             string    `json:"session_id"`
	Messages       []Message `json:"messages"`
	IterationCount int       `json:"iteration_count"`
	MaxIterations  int       `json:"max_iterations"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewSession creates an active session with an empty transcript.
func NewSession(id string, maxIterations int) *Session {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	now := time.Now()
	return &Session{
		ID:            id,
		Messages:      make([]Message, 0),
		MaxIterations: maxIterations,
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ResetForNewTurn gives the session a full iteration budget again.
// A terminal status is discarded; the transcript is kept.
func (s *Session) ResetForNewTurn() {
	s.IterationCount = 0
	s.Status = StatusActive
	s.UpdatedAt = time.Now()
}

// AtIterationCap reports whether the iteration budget is exhausted.
func (s *Session) AtIterationCap() bool {
	return s.IterationCount >= s.MaxIterations
}

// RecordExchange appends a user/agent pair, consumes one iteration and
// moves the session to the status implied by the loop status.
func (s *Session) RecordExchange(userText, agentText string, loopStatus LoopStatus) {
	s.Messages = append(s.Messages,
		Message{Role: RoleUser, Text: userText},
		Message{Role: RoleAgent, Text: agentText},
	)
	if s.IterationCount < s.MaxIterations {
		s.IterationCount++
	}
	s.Status = loopStatus.SessionStatus()
	s.UpdatedAt = time.Now()
}

// Clone returns a deep copy safe to hand out across calls.
func (s *Session) Clone() Session {
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	return c
}
