package completion_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/taskpulse/taskpulse/internal/completion"
)

type stubCounter struct {
	total     int
	completed int
	err       error
}

func (s *stubCounter) CountByTask(ctx context.Context, taskID int64) (int, int, error) {
	return s.total, s.completed, s.err
}

func TestIsComplete(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		completed int
		want      bool
	}{
		{name: "zero assignments is never complete", total: 0, completed: 0, want: false},
		{name: "all pending", total: 2, completed: 0, want: false},
		{name: "partially completed", total: 2, completed: 1, want: false},
		{name: "all completed", total: 2, completed: 2, want: true},
		{name: "single assignee completed", total: 1, completed: 1, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := completion.NewEvaluator(&stubCounter{total: tt.total, completed: tt.completed})

			done, err := eval.IsComplete(context.Background(), 1)

			assert.NoError(t, err)
			assert.Equal(t, tt.want, done)
		})
	}
}

func TestIsCompletePropagatesStoreError(t *testing.T) {
	boom := errors.New("store down")
	eval := completion.NewEvaluator(&stubCounter{err: boom})

	done, err := eval.IsComplete(context.Background(), 1)

	assert.ErrorIs(t, err, boom)
	assert.False(t, done)
}
