package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionDefaults(t *testing.T) {
	s := NewSession("abc", 0)

	assert.Equal(t, "abc", s.ID)
	assert.Equal(t, DefaultMaxIterations, s.MaxIterations)
	assert.Equal(t, StatusActive, s.Status)
	assert.NotNil(t, s.Messages)
	assert.Zero(t, s.IterationCount)
}

func TestRecordExchange(t *testing.T) {
	s := NewSession("abc", 2)

	s.RecordExchange("q1", "a1", LoopContinue)
	assert.Equal(t, 1, s.IterationCount)
	assert.Equal(t, StatusActive, s.Status)

	s.RecordExchange("q2", "a2", LoopBlocked)
	assert.Equal(t, 2, s.IterationCount)
	assert.Equal(t, StatusBlocked, s.Status)
	assert.True(t, s.AtIterationCap())

	// Count never exceeds the cap.
	s.RecordExchange("q3", "a3", LoopDone)
	assert.Equal(t, 2, s.IterationCount)
	assert.Equal(t, StatusDone, s.Status)
	require.Len(t, s.Messages, 6)
	assert.Equal(t, Message{Role: RoleAgent, Text: "a3"}, s.Messages[5])
}

func TestResetForNewTurnKeepsTranscript(t *testing.T) {
	s := NewSession("abc", 1)
	s.RecordExchange("q", "a", LoopDone)

	s.ResetForNewTurn()

	assert.Zero(t, s.IterationCount)
	assert.Equal(t, StatusActive, s.Status)
	assert.Len(t, s.Messages, 2)
}

func TestCloneIsDeep(t *testing.T) {
	s := NewSession("abc", 5)
	s.RecordExchange("q", "a", LoopContinue)

	c := s.Clone()
	c.Messages[0].Text = "changed"
	c.Messages = append(c.Messages, Message{Role: RoleUser, Text: "extra"})

	assert.Equal(t, "q", s.Messages[0].Text)
	assert.Len(t, s.Messages, 2)
}

func TestLoopStatusSessionStatus(t *testing.T) {
	assert.Equal(t, StatusActive, LoopContinue.SessionStatus())
	assert.Equal(t, StatusBlocked, LoopBlocked.SessionStatus())
	assert.Equal(t, StatusDone, LoopDone.SessionStatus())
	assert.False(t, LoopStatus("paused").Valid())
	assert.True(t, StatusDone.Terminal())
	assert.False(t, StatusActive.Terminal())
}

func TestAgentResponseOmitsAbsentFields(t *testing.T) {
	data, err := json.Marshal(AgentResponse{Message: "hello", LoopStatus: LoopDone, IterationCount: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"hello","loop_status":"done","iteration_count":1}`, string(data))

	data, err = json.Marshal(AgentResponse{
		Message:        "blocked",
		SessionID:      Ptr("s"),
		LoopStatus:     LoopBlocked,
		IterationCount: 3,
		BlockerReason:  Ptr("needs admin"),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"blocked","session_id":"s","loop_status":"blocked","iteration_count":3,"blocker_reason":"needs admin"}`, string(data))
}
