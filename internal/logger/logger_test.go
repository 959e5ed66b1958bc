package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "WARN"} {
		log, err := New(level)
		require.NoError(t, err, level)
		want, _ := zapcore.ParseLevel(level)
		require.True(t, log.Core().Enabled(want))
		require.False(t, log.Core().Enabled(want-1))
	}

	_, err := New("verbose")
	require.Error(t, err)
}
