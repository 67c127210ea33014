package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/pcdoctor/internal/domain"
	"github.com/ashureev/pcdoctor/internal/metrics"
	"github.com/ashureev/pcdoctor/internal/store"
)

const (
	defaultAnalyzerTimeout = 60 * time.Second
	journalWriteTimeout    = 5 * time.Second
)

// Blocker reasons surfaced when a call is rejected before the analyzer runs.
const (
	ReasonInvalidSession = "Invalid session ID"
	ReasonSessionEnded   = "Session ended"
	ReasonIterationCap   = "Maximum iterations reached"
)

// ErrJournalDisabled is returned by Turns when no journal is configured.
var ErrJournalDisabled = errors.New("turn journal is disabled")

// LoopController drives the diagnose/execute/analyze loop. It owns every
// session mutation and always answers with a well-formed AgentResponse.
type LoopController struct {
	sessions        store.SessionStore
	analyzer        Analyzer
	policy          ProposalPolicy
	journal         store.Journal
	metrics         *metrics.Metrics
	analyzerTimeout time.Duration
	logger          *slog.Logger
}

// LoopOption configures a LoopController.
type LoopOption func(*LoopController)

// WithPolicy sets the proposal policy.
func WithPolicy(p ProposalPolicy) LoopOption {
	return func(c *LoopController) {
		c.policy = p
	}
}

// WithJournal records every completed turn and clear in j.
func WithJournal(j store.Journal) LoopOption {
	return func(c *LoopController) {
		c.journal = j
	}
}

// WithMetrics reports loop activity to m.
func WithMetrics(m *metrics.Metrics) LoopOption {
	return func(c *LoopController) {
		c.metrics = m
	}
}

// WithAnalyzerTimeout bounds each analyzer call.
func WithAnalyzerTimeout(d time.Duration) LoopOption {
	return func(c *LoopController) {
		if d > 0 {
			c.analyzerTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) LoopOption {
	return func(c *LoopController) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewLoopController creates a controller over the given store and analyzer.
func NewLoopController(sessions store.SessionStore, analyzer Analyzer, opts ...LoopOption) *LoopController {
	c := &LoopController{
		sessions:        sessions,
		analyzer:        analyzer,
		policy:          DefaultProposalPolicy(),
		analyzerTimeout: defaultAnalyzerTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ShouldContinue is the only gate on calling the analyzer again.
func ShouldContinue(s *domain.Session) bool {
	return !s.AtIterationCap() && !s.Status.Terminal()
}

// StartTurn handles a new top-level user message. A missing or unknown
// sessionID creates a session under a fresh id, which the response carries.
// The session always gets a fresh iteration
// budget first, even if it previously ended.
func (c *LoopController) StartTurn(ctx context.Context, message string, sessionID *string) domain.AgentResponse {
	id := ""
	if sessionID != nil {
		id = *sessionID
	}

	var resp domain.AgentResponse
	var rec *domain.TurnRecord
	for {
		id = c.sessions.GetOrCreate(id).ID
		err := c.sessions.Mutate(id, func(s *domain.Session) {
			resp, rec = c.startTurnLocked(ctx, s, message)
		})
		if err == nil {
			break
		}
		// Cleared between creation and mutation; recreate under the same id.
		c.logger.Debug("session vanished before turn, recreating", "session_id", id)
	}

	c.afterTurn(ctx, domain.EntryStart, resp, rec)
	return resp
}

func (c *LoopController) startTurnLocked(ctx context.Context, s *domain.Session, message string) (domain.AgentResponse, *domain.TurnRecord) {
	s.ResetForNewTurn()

	if !ShouldContinue(s) {
		reason := fmt.Sprintf("Maximum iterations (%d) reached", s.MaxIterations)
		return c.reject(domain.EntryStart, "iteration_cap", s, reason), nil
	}

	history := BuildHistory(s.Messages)
	decision := c.runAnalyzer(ctx, domain.EntryStart, "I encountered an error while analyzing your request",
		func(ctx context.Context) (domain.Decision, error) {
			return c.analyzer.Analyze(ctx, message, history)
		})

	s.RecordExchange(message, decision.Message, decision.LoopStatus)
	return c.respond(s, decision), c.record(domain.EntryStart, s, message, decision)
}

// SubmitResult feeds the outcome of an externally executed command back
// into the loop. Unknown sessions and sessions that cannot continue are
// answered with a blocked response without touching the analyzer.
func (c *LoopController) SubmitResult(ctx context.Context, sessionID string, result ExecutionResult) domain.AgentResponse {
	var resp domain.AgentResponse
	var rec *domain.TurnRecord

	err := c.sessions.Mutate(sessionID, func(s *domain.Session) {
		resp, rec = c.submitResultLocked(ctx, s, result)
	})
	if errors.Is(err, domain.ErrSessionNotFound) {
		c.metrics.ObserveRejected(string(domain.EntrySubmit), "invalid_session")
		c.logger.Info("Result for unknown session", "session_id", sessionID)
		return domain.AgentResponse{
			Message:       "This session no longer exists. Please start a new conversation.",
			LoopStatus:    domain.LoopBlocked,
			BlockerReason: domain.Ptr(ReasonInvalidSession),
		}
	}

	c.afterTurn(ctx, domain.EntrySubmit, resp, rec)
	return resp
}

func (c *LoopController) submitResultLocked(ctx context.Context, s *domain.Session, result ExecutionResult) (domain.AgentResponse, *domain.TurnRecord) {
	if !ShouldContinue(s) {
		if s.AtIterationCap() {
			return c.reject(domain.EntrySubmit, "iteration_cap", s, ReasonIterationCap), nil
		}
		return c.reject(domain.EntrySubmit, "session_ended", s, ReasonSessionEnded), nil
	}

	summary := ExecutionSummary(result)
	history := BuildHistory(s.Messages)
	decision := c.runAnalyzer(ctx, domain.EntrySubmit, "I encountered an error while analyzing the command results",
		func(ctx context.Context) (domain.Decision, error) {
			return c.analyzer.AnalyzeResult(ctx, result, history)
		})

	s.RecordExchange(summary, decision.Message, decision.LoopStatus)
	return c.respond(s, decision), c.record(domain.EntrySubmit, s, summary, decision)
}

// ClearSession discards a session. Unknown ids are ignored.
func (c *LoopController) ClearSession(ctx context.Context, sessionID string) {
	_, existed := c.sessions.Get(sessionID)
	c.sessions.Delete(sessionID)
	c.metrics.SetSessionsActive(c.sessions.Len())
	if !existed {
		return
	}

	c.logger.Info("Session cleared", "session_id", sessionID)
	if c.journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalWriteTimeout)
	defer cancel()
	if err := c.journal.RecordClear(jctx, sessionID); err != nil {
		c.logger.Warn("failed to journal session clear", "session_id", sessionID, "error", err)
	}
}

// Session returns a snapshot of the session, if it exists.
func (c *LoopController) Session(sessionID string) (domain.Session, bool) {
	return c.sessions.Get(sessionID)
}

// Turns returns the journaled turns for a session.
func (c *LoopController) Turns(ctx context.Context, sessionID string) ([]domain.TurnRecord, error) {
	if c.journal == nil {
		return nil, ErrJournalDisabled
	}
	return c.journal.ListTurns(ctx, sessionID)
}

// ExecutionSummary renders a command execution report as a transcript entry.
func ExecutionSummary(result ExecutionResult) string {
	var b strings.Builder
	b.WriteString("Executed command: ")
	b.WriteString(result.Command)
	b.WriteString("\nOutput:\n")
	b.WriteString(result.Output)
	if result.Error != nil {
		b.WriteString("\nError: ")
		b.WriteString(*result.Error)
	}
	return b.String()
}

// runAnalyzer calls the analyzer under the configured deadline and always
// returns a usable decision.
func (c *LoopController) runAnalyzer(ctx context.Context, entry domain.Entry, failurePrefix string, call func(context.Context) (domain.Decision, error)) domain.Decision {
	actx, cancel := context.WithTimeout(ctx, c.analyzerTimeout)
	defer cancel()

	start := time.Now()
	decision, err := safeCall(actx, call)
	if err == nil {
		decision, err = c.finalize(decision)
	}
	c.metrics.ObserveAnalyzer(string(entry), time.Since(start), err != nil)

	if err != nil {
		c.logger.Warn("Analyzer failed", "entry", entry, "error", err)
		return failureDecision(failurePrefix, err)
	}
	return decision
}

func safeCall(ctx context.Context, call func(context.Context) (domain.Decision, error)) (decision domain.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analyzer panicked: %v", r)
		}
	}()
	return call(ctx)
}

// finalize applies the proposal policy and keeps blocker_reason present
// exactly when the loop is blocked.
func (c *LoopController) finalize(d domain.Decision) (domain.Decision, error) {
	if !d.LoopStatus.Valid() {
		return domain.Decision{}, fmt.Errorf("analyzer returned unknown loop status %q", d.LoopStatus)
	}
	if d.Proposal != nil {
		p := c.policy.Normalize(*d.Proposal)
		d.Proposal = &p
	}
	switch {
	case d.LoopStatus != domain.LoopBlocked:
		d.BlockerReason = nil
	case d.BlockerReason == nil || *d.BlockerReason == "":
		d.BlockerReason = domain.Ptr(d.Message)
	}
	return d, nil
}

func failureDecision(prefix string, err error) domain.Decision {
	return domain.Decision{
		Message:       fmt.Sprintf("%s: %v", prefix, err),
		LoopStatus:    domain.LoopBlocked,
		BlockerReason: domain.Ptr(fmt.Sprintf("API Error: %v", err)),
	}
}

func (c *LoopController) reject(entry domain.Entry, metricReason string, s *domain.Session, reason string) domain.AgentResponse {
	c.metrics.ObserveRejected(string(entry), metricReason)
	c.logger.Info("Turn rejected",
		"entry", entry,
		"session_id", s.ID,
		"iteration", s.IterationCount,
		"reason", reason,
	)
	return domain.AgentResponse{
		Message:        rejectionMessage(reason),
		SessionID:      domain.Ptr(s.ID),
		LoopStatus:     domain.LoopBlocked,
		IterationCount: s.IterationCount,
		BlockerReason:  domain.Ptr(reason),
	}
}

func rejectionMessage(reason string) string {
	if reason == ReasonSessionEnded {
		return "This diagnosis has already finished. Ask a new question to start another one."
	}
	return "I've reached the maximum number of diagnostic steps for this problem. Ask a new question to continue."
}

func (c *LoopController) respond(s *domain.Session, d domain.Decision) domain.AgentResponse {
	return domain.AgentResponse{
		Message:        d.Message,
		Proposal:       d.Proposal,
		SessionID:      domain.Ptr(s.ID),
		LoopStatus:     d.LoopStatus,
		IterationCount: s.IterationCount,
		BlockerReason:  d.BlockerReason,
	}
}

func (c *LoopController) record(entry domain.Entry, s *domain.Session, userText string, d domain.Decision) *domain.TurnRecord {
	return &domain.TurnRecord{
		SessionID:     s.ID,
		Iteration:     s.IterationCount,
		Entry:         entry,
		UserText:      userText,
		AgentText:     d.Message,
		LoopStatus:    d.LoopStatus,
		BlockerReason: d.BlockerReason,
		Proposal:      d.Proposal,
		CreatedAt:     time.Now(),
	}
}

// afterTurn reports a finished call. rec is nil for rejected calls.
func (c *LoopController) afterTurn(ctx context.Context, entry domain.Entry, resp domain.AgentResponse, rec *domain.TurnRecord) {
	c.metrics.SetSessionsActive(c.sessions.Len())
	if rec == nil {
		return
	}

	c.metrics.ObserveTurn(string(entry), string(resp.LoopStatus))
	c.logger.Info("Turn completed",
		"entry", entry,
		"session_id", rec.SessionID,
		"iteration", rec.Iteration,
		"loop_status", resp.LoopStatus,
		"has_proposal", resp.Proposal != nil,
	)

	if c.journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalWriteTimeout)
	defer cancel()
	if err := c.journal.RecordTurn(jctx, *rec); err != nil {
		c.logger.Warn("failed to journal turn", "session_id", rec.SessionID, "error", err)
	}
}
