package agent

import "github.com/ashureev/pcdoctor/internal/domain"

const (
	defaultProposalTimeout = 30
	maxProposalTimeout     = 120
)

// ProposalPolicy normalizes command proposals before they reach the client.
// Severity is the analyzer's call and passes through untouched.
type ProposalPolicy struct {
	DefaultTimeout int // seconds
	MaxTimeout     int // seconds
}

// DefaultProposalPolicy returns a 30s default with a 120s ceiling.
func DefaultProposalPolicy() ProposalPolicy {
	return ProposalPolicy{
		DefaultTimeout: defaultProposalTimeout,
		MaxTimeout:     maxProposalTimeout,
	}
}

// Normalize replaces a missing, non-positive or out-of-range timeout with
// the default. It never rejects a proposal.
func (p ProposalPolicy) Normalize(in domain.CommandProposal) domain.CommandProposal {
	def := p.DefaultTimeout
	if def <= 0 {
		def = defaultProposalTimeout
	}
	limit := p.MaxTimeout
	if limit < def {
		limit = def
	}

	out := in
	if out.Timeout <= 0 || out.Timeout > limit {
		out.Timeout = def
	}
	return out
}
