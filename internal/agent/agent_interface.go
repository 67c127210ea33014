package agent

import (
	"context"

	"github.com/ashureev/pcdoctor/internal/domain"
)

// Analyzer turns conversational context into a structured decision.
// This interface is implemented by LLMAnalyzer and KeywordAnalyzer.
//
// A non-nil error is the failure variant: the loop controller replaces it
// with a blocked decision and never retries.
type Analyzer interface {
	// Analyze handles a new top-level user message.
	Analyze(ctx context.Context, message string, history []HistoryEntry) (domain.Decision, error)

	// AnalyzeResult handles the outcome of a previously proposed command.
	AnalyzeResult(ctx context.Context, result ExecutionResult, history []HistoryEntry) (domain.Decision, error)
}

// ExecutionResult is the report of a command executed outside this service.
type ExecutionResult struct {
	Command string
	Output  string
	Error   *string
}

// Failed reports whether the execution reported an error.
func (r ExecutionResult) Failed() bool {
	return r.Error != nil && *r.Error != ""
}

// Ensure the bundled analyzers implement Analyzer.
var (
	_ Analyzer = (*LLMAnalyzer)(nil)
	_ Analyzer = (*KeywordAnalyzer)(nil)
)
