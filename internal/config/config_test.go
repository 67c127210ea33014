package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "MAX_ITERATIONS", "ANALYZER_API_KEY", "GEMINI_API_KEY", "ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}
	t.Setenv("PORT", "8000")

	cfg, err := Load()
	require.NoError(t, err)

	// An empty MAX_ITERATIONS fails to parse and falls back.
	assert.Equal(t, 10, cfg.MaxIterations)
	assert.Equal(t, 30, cfg.Proposal.DefaultTimeoutSeconds)
	assert.Equal(t, 120, cfg.Proposal.MaxTimeoutSeconds)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.False(t, cfg.AnalyzerEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("ANALYZER_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("ANALYZER_TIMEOUT", "15s")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:5173, app://pcdoctor")
	t.Setenv("JOURNAL_ENABLED", "off")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
	assert.Equal(t, "gem-key", cfg.Analyzer.APIKey)
	assert.True(t, cfg.AnalyzerEnabled())
	assert.Equal(t, 15*time.Second, cfg.Analyzer.Timeout)
	assert.Equal(t, []string{"http://localhost:5173", "app://pcdoctor"}, cfg.AllowedOrigins)
	assert.False(t, cfg.Journal.Enabled)
}

func TestValidateRejectsBadProposalBounds(t *testing.T) {
	t.Setenv("PORT", "8000")
	t.Setenv("MAX_ITERATIONS", "10")
	t.Setenv("PROPOSAL_DEFAULT_TIMEOUT", "60")
	t.Setenv("PROPOSAL_MAX_TIMEOUT", "30")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROPOSAL_MAX_TIMEOUT")
}
