package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luki/simtemp/internal/sample"
)

func mk(v int32) sample.Sample {
	return sample.Sample{
		Timestamp:  time.Unix(0, int64(v)),
		ValueMilli: v,
		Flags:      sample.FlagNew,
	}
}

func TestRingKeepsNewest(t *testing.T) {
	const capacity = 5
	for _, pushes := range []int{0, 1, capacity - 1, capacity, capacity + 1, 3*capacity + 2} {
		r := NewRing(capacity)
		evictions := 0
		for i := 0; i < pushes; i++ {
			if r.Push(mk(int32(i))) {
				evictions++
			}
			require.LessOrEqual(t, r.Len(), capacity)
		}

		kept := min(pushes, capacity)
		assert.Equal(t, kept, r.Len(), "pushes=%d", pushes)
		assert.Equal(t, pushes-kept, evictions, "pushes=%d", pushes)
		assert.Equal(t, pushes >= capacity, r.IsFull())

		for want := pushes - kept; want < pushes; want++ {
			s, ok := r.Pop()
			require.True(t, ok)
			assert.Equal(t, int32(want), s.ValueMilli, "pushes=%d", pushes)
		}
		_, ok := r.Pop()
		assert.False(t, ok)
		assert.True(t, r.IsEmpty())
	}
}

func TestRingInterleaved(t *testing.T) {
	r := NewRing(3)
	r.Push(mk(1))
	r.Push(mk(2))

	s, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, int32(1), s.ValueMilli)

	r.Push(mk(3))
	r.Push(mk(4))
	assert.True(t, r.IsFull())
	assert.True(t, r.Push(mk(5)), "push on full evicts")

	var got []int32
	for !r.IsEmpty() {
		s, _ := r.Pop()
		got = append(got, s.ValueMilli)
	}
	assert.Equal(t, []int32{3, 4, 5}, got)
	assert.Equal(t, 3, r.Cap())
}

func TestNewRingPanicsOnZero(t *testing.T) {
	assert.Panics(t, func() { NewRing(0) })
}

func TestTrend(t *testing.T) {
	h := NewTrend(5)

	now := time.Now()
	for i := 0; i < 7; i++ {
		s := sample.Sample{
			Timestamp:  now.Add(time.Duration(i) * time.Second),
			ValueMilli: int32(30000 + i*1000),
			Flags:      sample.FlagNew,
		}
		if i == 6 {
			s.Flags |= sample.FlagThresholdCrossed
		}
		h.Push(s)
	}

	if len(h.Points) != 5 {
		t.Errorf("expected 5 points, got %d", len(h.Points))
	}
	if h.Last() != 36.0 {
		t.Errorf("Last(): got %f, want 36.0", h.Last())
	}
	if h.Min != 30.0 {
		t.Errorf("Min: got %f, want 30.0", h.Min)
	}
	if h.Peak != 36.0 {
		t.Errorf("Peak: got %f, want 36.0", h.Peak)
	}
	if h.Alerts != 1 {
		t.Errorf("Alerts: got %d, want 1", h.Alerts)
	}
	if h.Avg() != 34.0 {
		t.Errorf("Avg(): got %f, want 34.0", h.Avg())
	}
}

func TestTrendLastNPoints(t *testing.T) {
	h := NewTrend(100)
	base := time.Date(2026, 2, 21, 14, 0, 0, 0, time.Local)

	for i := 0; i < 120; i++ {
		h.Push(sample.Sample{Timestamp: base.Add(time.Duration(i) * time.Second), ValueMilli: int32(30000 + i%10)})
	}

	pts := h.LastNPoints(5)
	if len(pts) != 5 {
		t.Fatalf("LastNPoints(5): got %d, want 5", len(pts))
	}

	last := pts[len(pts)-1]
	if !last.Time.Equal(base.Add(119 * time.Second)) {
		t.Errorf("last point time: got %v, want %v", last.Time, base.Add(119*time.Second))
	}
	if h.LastNPoints(0) != nil {
		t.Error("LastNPoints(0) should be nil")
	}
}
