package history

import (
	"math"
	"time"

	"github.com/luki/simtemp/internal/sample"
)

// Point is a single data point in a display trend.
type Point struct {
	Temp  float64 // degrees Celsius
	Time  time.Time
	Alert bool
}

// Trend keeps the most recent consumed samples for rendering.
type Trend struct {
	Points []Point
	Max    int // capacity
	Min    float64
	Peak   float64
	Alerts int
}

// NewTrend creates a trend with the given capacity.
func NewTrend(capacity int) *Trend {
	return &Trend{
		Points: make([]Point, 0, capacity),
		Max:    capacity,
		Min:    math.MaxFloat64,
		Peak:   -math.MaxFloat64,
	}
}

// Push adds a consumed sample to the trend.
func (t *Trend) Push(s sample.Sample) {
	p := Point{Temp: s.Celsius(), Time: s.Timestamp, Alert: s.Alert()}
	if len(t.Points) >= t.Max {
		copy(t.Points, t.Points[1:])
		t.Points[len(t.Points)-1] = p
	} else {
		t.Points = append(t.Points, p)
	}

	if p.Temp < t.Min {
		t.Min = p.Temp
	}
	if p.Temp > t.Peak {
		t.Peak = p.Temp
	}
	if p.Alert {
		t.Alerts++
	}
}

// Last returns the most recent temperature, or 0 if empty.
func (t *Trend) Last() float64 {
	if len(t.Points) == 0 {
		return 0
	}
	return t.Points[len(t.Points)-1].Temp
}

// Avg returns the average temperature across all stored points.
func (t *Trend) Avg() float64 {
	if len(t.Points) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range t.Points {
		sum += p.Temp
	}
	return sum / float64(len(t.Points))
}

// LastNPoints returns a copy of the last n points.
func (t *Trend) LastNPoints(n int) []Point {
	if n <= 0 || len(t.Points) == 0 {
		return nil
	}
	start := len(t.Points) - n
	if start < 0 {
		start = 0
	}
	out := make([]Point, len(t.Points[start:]))
	copy(out, t.Points[start:])
	return out
}
