package logger_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/taskpulse/taskpulse/internal/platform/logger"
)

func TestSetupLevels(t *testing.T) {
	tests := []struct {
		configured string
		want       slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run("level "+tt.configured, func(t *testing.T) {
			log := logger.Setup(logger.Config{Level: tt.configured})
			assert.NotNil(t, log)
			assert.True(t, log.Enabled(context.Background(), tt.want))
			if tt.want != slog.LevelDebug {
				assert.False(t, log.Enabled(context.Background(), tt.want-1))
			}
		})
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Equal(t, slog.Default(), logger.FromContext(context.Background()))
}

func TestFromContextReturnsStoredLogger(t *testing.T) {
	var buf bytes.Buffer
	stored := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := logger.WithContext(context.Background(), stored)

	got := logger.FromContext(ctx)
	assert.Equal(t, stored, got)

	got.Info("hello", "task_id", 7)
	assert.Contains(t, buf.String(), `"task_id":7`)
}
