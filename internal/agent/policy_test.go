package agent

import (
	"testing"

	"github.com/ashureev/pcdoctor/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestProposalPolicyNormalize(t *testing.T) {
	tests := []struct {
		name    string
		timeout int
		want    int
	}{
		{"missing", 0, 30},
		{"negative", -5, 30},
		{"fast", 10, 10},
		{"at ceiling", 120, 120},
		{"above ceiling", 600, 30},
	}

	policy := DefaultProposalPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := domain.CommandProposal{
				Command:  "tracert 8.8.8.8",
				Severity: domain.SeverityHigh,
				Reason:   "trace route",
				Timeout:  tt.timeout,
			}

			out := policy.Normalize(in)

			assert.Equal(t, tt.want, out.Timeout)
			assert.Equal(t, domain.SeverityHigh, out.Severity)
			assert.Equal(t, in.Command, out.Command)
		})
	}
}

func TestProposalPolicyCustomBounds(t *testing.T) {
	policy := ProposalPolicy{DefaultTimeout: 20, MaxTimeout: 60}

	assert.Equal(t, 20, policy.Normalize(domain.CommandProposal{Timeout: 90}).Timeout)
	assert.Equal(t, 45, policy.Normalize(domain.CommandProposal{Timeout: 45}).Timeout)
}
