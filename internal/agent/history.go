package agent

import "github.com/ashureev/pcdoctor/internal/domain"

// HistoryRole is the conversational role understood by the analyzer.
type HistoryRole string

const (
	HistoryUser  HistoryRole = "user"
	HistoryModel HistoryRole = "model"
)

// HistoryEntry is one prior turn as the analyzer sees it.
type HistoryEntry struct {
	Role HistoryRole
	Text string
}

// BuildHistory converts a transcript into analyzer context, preserving order.
// The caller excludes the message currently being analyzed.
func BuildHistory(messages []domain.Message) []HistoryEntry {
	history := make([]HistoryEntry, 0, len(messages))
	for _, msg := range messages {
		role := HistoryUser
		if msg.Role == domain.RoleAgent {
			role = HistoryModel
		}
		history = append(history, HistoryEntry{Role: role, Text: msg.Text})
	}
	return history
}
