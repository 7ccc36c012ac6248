package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"prod", "production", "dev", ""} {
		l, err := New(mode)
		require.NoError(t, err, mode)
		require.NotNil(t, l.SugaredLogger)
	}
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("basket_id", "b1").Warn("fallback", "point", "item_count")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "fallback", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "b1", fields["basket_id"])
	assert.Equal(t, "item_count", fields["point"])
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := Nop()
	assert.Same(t, l, OrNop(l))
}
