package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()

	target := time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

	t.Run("four hours before is closed", func(t *testing.T) {
		t.Parallel()
		d := Evaluate(target, target.Add(-4*time.Hour))
		assert.False(t, d.Allowed)
		assert.Equal(t, time.Hour, d.WaitRemaining)
		assert.Equal(t, target.Add(-3*time.Hour), d.OpensAt)
	})

	t.Run("boundary is inclusive", func(t *testing.T) {
		t.Parallel()
		d := Evaluate(target, target.Add(-LeadTime))
		assert.True(t, d.Allowed)
		assert.Zero(t, d.WaitRemaining)
	})

	t.Run("one hour before is open", func(t *testing.T) {
		t.Parallel()
		assert.True(t, Evaluate(target, target.Add(-time.Hour)).Allowed)
	})

	t.Run("after the session starts is open", func(t *testing.T) {
		t.Parallel()
		assert.True(t, Evaluate(target, target.Add(2*time.Hour)).Allowed)
	})
}

func TestEvaluate_MonotonicInNow(t *testing.T) {
	t.Parallel()

	target := time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)
	opened := false
	for offset := -6 * time.Hour; offset <= time.Hour; offset += 7 * time.Minute {
		d := Evaluate(target, target.Add(offset))
		if opened {
			assert.True(t, d.Allowed, "window closed again at offset %s", offset)
		}
		opened = opened || d.Allowed
	}
	assert.True(t, opened)
}

func TestFormatWait(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0 minutes"},
		{30 * time.Second, "1 minute"},
		{45 * time.Minute, "45 minutes"},
		{60 * time.Minute, "60 minutes"},
		{61 * time.Minute, "1 hour 1 minute"},
		{2 * time.Hour, "2 hours"},
		{2*time.Hour + 5*time.Minute, "2 hours 5 minutes"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatWait(tt.in), tt.in.String())
	}
}
