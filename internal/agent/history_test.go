package agent

import (
	"testing"

	"github.com/ashureev/pcdoctor/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestBuildHistoryMapsRolesInOrder(t *testing.T) {
	history := BuildHistory([]domain.Message{
		{Role: domain.RoleUser, Text: "internet keeps dropping"},
		{Role: domain.RoleAgent, Text: "Let's check your adapter."},
		{Role: domain.RoleUser, Text: "Executed command: ipconfig /all\nOutput:\n..."},
	})

	assert.Equal(t, []HistoryEntry{
		{Role: HistoryUser, Text: "internet keeps dropping"},
		{Role: HistoryModel, Text: "Let's check your adapter."},
		{Role: HistoryUser, Text: "Executed command: ipconfig /all\nOutput:\n..."},
	}, history)
}

func TestBuildHistoryEmpty(t *testing.T) {
	history := BuildHistory(nil)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}
