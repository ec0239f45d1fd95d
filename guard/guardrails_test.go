package guard

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/config"
	"github.com/conductorhq/conductor/errs"
)

type recordingSink struct {
	entries []AuditEntry
}

func (s *recordingSink) WriteAudit(_ context.Context, entry AuditEntry) {
	s.entries = append(s.entries, entry)
}

func newTestGuardrails() (*Guardrails, *recordingSink) {
	cfg := config.GuardrailsConfig{}
	cfg.SetDefaults()
	sink := &recordingSink{}
	return NewGuardrails(cfg, sink, slog.Default()), sink
}

func TestGuardrails_BlocksCriticalRmRf(t *testing.T) {
	g, sink := newTestGuardrails()
	msg, err := g.Check(context.Background(), "build", map[string]interface{}{"command": "rm -rf /"}, "agent-1", "sess-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrGuardrailBlocked)
	assert.Contains(t, msg, "GUARDRAIL BLOCKED")
	require.Len(t, sink.entries, 1)
	assert.Equal(t, "BLOCKED", sink.entries[0].Action)
	assert.Equal(t, SeverityCritical, sink.entries[0].Severity)
}

func TestGuardrails_AllowsSafeCommand(t *testing.T) {
	g, sink := newTestGuardrails()
	msg, err := g.Check(context.Background(), "build", map[string]interface{}{"command": "go test ./..."}, "agent-1", "sess-1")
	require.NoError(t, err)
	assert.Empty(t, msg)
	assert.Empty(t, sink.entries)
}

func TestGuardrails_MediumNeverBlocks(t *testing.T) {
	g, sink := newTestGuardrails()
	msg, err := g.Check(context.Background(), "code_read", map[string]interface{}{"path": "/home/user/.ssh/id_rsa"}, "agent-1", "sess-1")
	require.NoError(t, err)
	assert.Empty(t, msg)
	require.Len(t, sink.entries, 1)
	assert.Equal(t, "WARNED", sink.entries[0].Action)
}

func TestGuardrails_HighBlocksAfterSessionThreshold(t *testing.T) {
	cfg := config.GuardrailsConfig{}
	cfg.SetDefaults()
	cfg.MaxHighPerSession = 2
	g := NewGuardrails(cfg, nil, slog.Default())

	args := map[string]interface{}{"command": "git push origin main --force"}
	for i := 0; i < 2; i++ {
		_, err := g.Check(context.Background(), "build", args, "agent-1", "sess-1")
		require.Error(t, err)
	}
	// third HIGH call in the session must block regardless of BlockHigh.
	g.cfg.BlockHigh = false
	_, err := g.Check(context.Background(), "build", args, "agent-1", "sess-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrGuardrailBlocked)
}

func TestGuardrails_DisabledAllowsEverything(t *testing.T) {
	cfg := config.GuardrailsConfig{}
	cfg.SetDefaults()
	cfg.Enabled = false
	g := NewGuardrails(cfg, nil, slog.Default())
	msg, err := g.Check(context.Background(), "build", map[string]interface{}{"command": "rm -rf /"}, "agent-1", "sess-1")
	require.NoError(t, err)
	assert.Empty(t, msg)
}
