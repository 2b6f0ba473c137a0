package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeRedactsTokensAndHashesSessionIDs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewWithCore(core, TierBasic)

	log.Info("session.start", "token", "abc", "session_id", "sess-1", "answer_count", 3)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "[REDACTED]", fields["token"])
	assert.Contains(t, fields["session_id"], "hash:")
	assert.EqualValues(t, 3, fields["answer_count"])
}

func TestFullTierGate(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	basic := NewWithCore(core, TierBasic)
	basic.Full("question.select.score", "phase", "A")
	assert.Equal(t, 0, logs.Len())

	full := NewWithCore(core, TierFull).With("service", "test")
	full.Full("question.select.score", "phase", "A")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "full", logs.All()[0].ContextMap()["tier"])
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, TierFull, ParseTier(" FULL "))
	assert.Equal(t, TierBasic, ParseTier("verbose"))
	assert.Equal(t, TierBasic, ParseTier(""))
}
