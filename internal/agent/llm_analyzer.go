package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/pcdoctor/internal/domain"
	"github.com/kaptinlin/jsonrepair"
	"github.com/teilomillet/gollm"
)

// ErrMalformedOutput is returned when the model reply cannot be turned into
// a valid decision.
var ErrMalformedOutput = errors.New("malformed analyzer output")

var defaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-latest",
	"groq":      "llama-3.1-8b-instant",
	"ollama":    "llama3.1",
}

// LLMConfig configures an LLMAnalyzer.
type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
}

type generateFunc func(ctx context.Context, prompt *gollm.Prompt) (string, error)

// LLMAnalyzer asks a language model for the next diagnostic step.
type LLMAnalyzer struct {
	provider string
	model    string
	generate generateFunc
}

// NewLLMAnalyzer builds a gollm client for the configured provider.
func NewLLMAnalyzer(cfg LLMConfig) (*LLMAnalyzer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		return nil, fmt.Errorf("analyzer provider is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModels[provider]
	}
	if model == "" {
		return nil, fmt.Errorf("no default model for provider %q, set ANALYZER_MODEL", provider)
	}

	opts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.MaxTokens),
		gollm.SetTemperature(cfg.Temperature),
		gollm.SetMaxRetries(0), // one attempt per turn; failures become blocked decisions
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.APIKey != "" {
		opts = append(opts, gollm.SetAPIKey(cfg.APIKey))
	}

	llm, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", provider, err)
	}

	slog.Info("LLM analyzer initialized", "provider", provider, "model", model)
	return &LLMAnalyzer{
		provider: provider,
		model:    model,
		generate: func(ctx context.Context, p *gollm.Prompt) (string, error) {
			return llm.Generate(ctx, p)
		},
	}, nil
}

// Analyze asks the model how to approach a new user message.
func (a *LLMAnalyzer) Analyze(ctx context.Context, message string, history []HistoryEntry) (domain.Decision, error) {
	return a.ask(ctx, renderConversation(history, message))
}

// AnalyzeResult asks the model to interpret a command execution report.
func (a *LLMAnalyzer) AnalyzeResult(ctx context.Context, result ExecutionResult, history []HistoryEntry) (domain.Decision, error) {
	return a.ask(ctx, renderConversation(history, resultPrompt(result)))
}

func (a *LLMAnalyzer) ask(ctx context.Context, body string) (domain.Decision, error) {
	prompt := gollm.NewPrompt(body, gollm.WithSystemPrompt(systemInstruction, gollm.CacheTypeEphemeral))

	raw, err := a.generate(ctx, prompt)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("%s generate: %w", a.provider, err)
	}
	return parseDecision(raw)
}

type proposalPayload struct {
	Command  string `json:"command"`
	Severity string `json:"severity"`
	Reason   string `json:"reason"`
	Timeout  int    `json:"timeout"`
}

type decisionPayload struct {
	Message       string           `json:"message"`
	Proposal      *proposalPayload `json:"proposal"`
	LoopStatus    string           `json:"loop_status"`
	BlockerReason *string          `json:"blocker_reason"`
}

// parseDecision converts a model reply into a Decision. Code fences and
// surrounding prose are stripped and broken JSON is repaired once before
// giving up.
func parseDecision(raw string) (domain.Decision, error) {
	text := extractJSONObject(raw)
	if text == "" {
		return domain.Decision{}, fmt.Errorf("%w: no JSON object in reply", ErrMalformedOutput)
	}

	var payload decisionPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(text)
		if repairErr != nil {
			return domain.Decision{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		payload = decisionPayload{}
		if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
			return domain.Decision{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
	}

	if strings.TrimSpace(payload.Message) == "" {
		return domain.Decision{}, fmt.Errorf("%w: missing message", ErrMalformedOutput)
	}

	status := domain.LoopStatus(strings.ToLower(strings.TrimSpace(payload.LoopStatus)))
	if status == "" {
		status = domain.LoopDone
	}
	if !status.Valid() {
		return domain.Decision{}, fmt.Errorf("%w: unknown loop_status %q", ErrMalformedOutput, payload.LoopStatus)
	}

	decision := domain.Decision{
		Message:       payload.Message,
		LoopStatus:    status,
		BlockerReason: payload.BlockerReason,
	}

	if p := payload.Proposal; p != nil {
		if strings.TrimSpace(p.Command) == "" {
			return domain.Decision{}, fmt.Errorf("%w: proposal without command", ErrMalformedOutput)
		}
		severity := domain.Severity(strings.ToLower(strings.TrimSpace(p.Severity)))
		if !severity.Valid() {
			return domain.Decision{}, fmt.Errorf("%w: unknown severity %q", ErrMalformedOutput, p.Severity)
		}
		decision.Proposal = &domain.CommandProposal{
			Command:  p.Command,
			Severity: severity,
			Reason:   p.Reason,
			Timeout:  p.Timeout,
		}
	}

	return decision, nil
}

func extractJSONObject(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		// Truncated reply; let the repair pass close it.
		return text[start:]
	}
	return text[start : end+1]
}
