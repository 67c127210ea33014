package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/pcdoctor/internal/domain"
)

const keywordHelpMessage = "I'm here to help with PC issues. Ask me to check network, processes, or run diagnostics."

type keywordRule struct {
	keywords []string
	message  string
	proposal domain.CommandProposal
}

var keywordRules = []keywordRule{
	{
		keywords: []string{"ip", "network", "wifi"},
		message:  "I can check your network configuration.",
		proposal: domain.CommandProposal{
			Command:  "ipconfig /all",
			Severity: domain.SeverityLow,
			Reason:   "Checking network details to diagnose connectivity.",
		},
	},
	{
		keywords: []string{"ping"},
		message:  "I'll check your internet connection.",
		proposal: domain.CommandProposal{
			Command:  "ping google.com",
			Severity: domain.SeverityLow,
			Reason:   "Verifying internet reachability.",
			Timeout:  15,
		},
	},
	{
		keywords: []string{"process", "running"},
		message:  "Here are the top running processes.",
		proposal: domain.CommandProposal{
			Command:  `powershell -Command "Get-Process | Sort-Object CPU -Descending | Select-Object -First 10"`,
			Severity: domain.SeverityLow,
			Reason:   "Listing resource-heavy processes.",
		},
	},
}

var systemRule = keywordRule{
	keywords: []string{"system", "specs"},
	message:  "Gathering system information.",
	proposal: domain.CommandProposal{
		Command:  "systeminfo",
		Severity: domain.SeverityLow,
		Reason:   "Retrieving system specifications.",
	},
}

// KeywordAnalyzer maps well-known phrases to fixed diagnostic commands.
// It needs no credentials and serves as the offline fallback.
type KeywordAnalyzer struct{}

// NewKeywordAnalyzer returns a KeywordAnalyzer.
func NewKeywordAnalyzer() *KeywordAnalyzer {
	return &KeywordAnalyzer{}
}

// Analyze matches the message against the keyword table. Matching is a
// case-insensitive substring test, first rule wins.
func (k *KeywordAnalyzer) Analyze(_ context.Context, message string, _ []HistoryEntry) (domain.Decision, error) {
	msg := strings.ToLower(message)

	for _, rule := range keywordRules {
		if rule.matches(msg) {
			return proposalDecision(rule.message, rule.proposal), nil
		}
	}

	if idx := strings.LastIndex(msg, "install"); idx >= 0 {
		target := strings.TrimSpace(msg[idx+len("install"):])
		return proposalDecision(
			fmt.Sprintf("I can try to install %s, but I need your approval.", target),
			domain.CommandProposal{
				Command:  "winget install " + target,
				Severity: domain.SeverityHigh,
				Reason:   "Installing software modifies your system.",
				Timeout:  120,
			},
		), nil
	}

	if systemRule.matches(msg) {
		return proposalDecision(systemRule.message, systemRule.proposal), nil
	}

	return domain.Decision{Message: keywordHelpMessage, LoopStatus: domain.LoopDone}, nil
}

// AnalyzeResult ends the loop with a short summary of the execution.
func (k *KeywordAnalyzer) AnalyzeResult(_ context.Context, result ExecutionResult, _ []HistoryEntry) (domain.Decision, error) {
	if result.Failed() {
		return domain.Decision{
			Message:    fmt.Sprintf("The command %q failed: %s", result.Command, *result.Error),
			LoopStatus: domain.LoopDone,
		}, nil
	}
	return domain.Decision{
		Message:    fmt.Sprintf("The command %q finished. Review the output above for details.", result.Command),
		LoopStatus: domain.LoopDone,
	}, nil
}

func (r keywordRule) matches(msg string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

func proposalDecision(message string, p domain.CommandProposal) domain.Decision {
	return domain.Decision{
		Message:    message,
		Proposal:   &p,
		LoopStatus: domain.LoopContinue,
	}
}
