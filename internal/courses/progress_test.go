package courses

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompletion(t *testing.T) {
	cases := []struct {
		name      string
		watched   int
		duration  int
		pct       float64
		completed bool
	}{
		{"unknown duration", 30, 0, 0, false},
		{"nothing watched", 0, 600, 0, false},
		{"a third", 200, 600, 33.33, false},
		{"just under threshold", 539, 600, 89.83, false},
		{"at threshold", 540, 600, 90, true},
		{"overshoot is capped", 900, 600, 100, true},
		{"negative counts as zero", -5, 600, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pct, done := Completion(tc.watched, tc.duration)
			assert.Equal(t, tc.pct, pct)
			assert.Equal(t, tc.completed, done)
		})
	}
}

func TestWatchedAndCompleted(t *testing.T) {
	v := Video{ID: "v1", DurationSeconds: 300}

	p := Watched("u1", "c1", v, 150)
	assert.Equal(t, "v1", p.VideoID)
	assert.Equal(t, 150, p.WatchDurationSeconds)
	assert.Equal(t, 50.0, p.CompletionPercentage)
	assert.False(t, p.IsCompleted)

	p = Watched("u1", "c1", v, -1)
	assert.Equal(t, 0, p.WatchDurationSeconds)

	p = Completed("u1", "c1", v)
	assert.Equal(t, 300, p.WatchDurationSeconds)
	assert.Equal(t, 100.0, p.CompletionPercentage)
	assert.True(t, p.IsCompleted)
	assert.False(t, p.LastWatchedAt.IsZero())
}
