package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/iliamunaev/highway-simulator/internal/apperr"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		level   string
		json    bool
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{name: "info_console", level: "info", enabled: zapcore.InfoLevel, muted: zapcore.DebugLevel},
		{name: "debug_json", level: "debug", json: true, enabled: zapcore.DebugLevel, muted: zapcore.DebugLevel - 1},
		{name: "warn_upper", level: "WARN", enabled: zapcore.WarnLevel, muted: zapcore.InfoLevel},
		{name: "error_json", level: "error", json: true, enabled: zapcore.ErrorLevel, muted: zapcore.WarnLevel},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			log, err := New(tt.level, tt.json)
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tt.enabled))
			assert.False(t, log.Core().Enabled(tt.muted))
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	t.Parallel()

	_, err := New("loud", false)
	require.ErrorIs(t, err, apperr.ErrInvalidConfig)
}
