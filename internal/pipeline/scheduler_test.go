package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleNext(t *testing.T) {
	base := time.Date(2021, 4, 16, 10, 7, 30, 0, time.UTC) // Friday

	tests := []struct {
		expr string
		want time.Time
	}{
		{"* * * * *", time.Date(2021, 4, 16, 10, 8, 0, 0, time.UTC)},
		{"0 3 * * *", time.Date(2021, 4, 17, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2021, 4, 16, 10, 15, 0, 0, time.UTC)},
		{"0 8-18/2 * * *", time.Date(2021, 4, 16, 12, 0, 0, 0, time.UTC)},
		{"30 7 * * 1-5", time.Date(2021, 4, 19, 7, 30, 0, 0, time.UTC)},
		{"0 0 * * 0", time.Date(2021, 4, 18, 0, 0, 0, 0, time.UTC)},
		{"@daily", time.Date(2021, 4, 17, 0, 0, 0, 0, time.UTC)},
		{"0 0 1,15 * *", time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"0 0 1 * 0", time.Date(2021, 4, 18, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s, err := ParseCron(tt.expr)
			require.NoError(t, err)
			got, ok := s.Next(base)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCronErrors(t *testing.T) {
	for _, expr := range []string{
		"* * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 8",
		"*/0 * * * *",
		"5-1 * * * *",
		"a * * * *",
	} {
		_, err := ParseCron(expr)
		assert.Error(t, err, expr)
	}
}

func TestScheduleNeverMatches(t *testing.T) {
	s, err := ParseCron("0 0 31 2 *")
	require.NoError(t, err)
	_, ok := s.Next(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

type countingRunner struct {
	runs   int
	stopAt int
	cancel context.CancelFunc
}

func (r *countingRunner) Run(context.Context) (RunReport, error) {
	r.runs++
	if r.runs >= r.stopAt {
		r.cancel()
	}
	return RunReport{}, errors.New("run failed")
}

func TestRunCronKeepsGoingAfterFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &countingRunner{stopAt: 3, cancel: cancel}

	s := NewScheduler(runner, nil)
	s.now = func() time.Time { return time.Date(2021, 4, 16, 10, 0, 0, 0, time.UTC) }
	var waits []time.Duration
	s.after = func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}

	err := s.RunCron(ctx, "0 3 * * *")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, runner.runs)
	require.NotEmpty(t, waits)
	assert.Equal(t, 17*time.Hour, waits[0])
}

func TestRunCronInvalidExpression(t *testing.T) {
	s := NewScheduler(&countingRunner{}, nil)
	err := s.RunCron(context.Background(), "every day")
	assert.Error(t, err)
}
