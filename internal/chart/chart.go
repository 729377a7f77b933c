// Package chart provides sparkline rendering with color-coded temperature
// thresholds, periodic tick marks, timeline labels, and a threshold scale bar.
package chart

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/luki/simtemp/internal/history"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

var (
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	tickStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
)

// TempColor returns the color for a temperature given the alert threshold,
// all in °C.
func TempColor(v, threshold float64) lipgloss.Color {
	switch {
	case v >= threshold:
		return lipgloss.Color("196") // red
	case v >= threshold*0.85:
		return lipgloss.Color("220") // yellow
	default:
		return lipgloss.Color("78") // soft green
	}
}

// Options controls sparkline scaling.
type Options struct {
	Width     int
	Min, Max  float64       // value range mapped onto the block heights
	Threshold float64       // alert threshold in °C
	TickEvery time.Duration // tick mark interval; 0 disables ticks
}

// RenderSparkline renders plain values without ticks.
func RenderSparkline(values []float64, opts Options) string {
	pts := make([]history.Point, len(values))
	for i, v := range values {
		pts[i] = history.Point{Temp: v}
	}
	opts.TickEvery = 0
	return RenderSparklinePoints(pts, opts)
}

// RenderSparklinePoints renders the newest opts.Width points. A subtle
// pipe is drawn where a point starts a new TickEvery interval, and points
// that raised an alert are drawn bold.
func RenderSparklinePoints(points []history.Point, opts Options) string {
	width := opts.Width
	if width <= 0 {
		return ""
	}
	if len(points) == 0 {
		return dimStyle.Render(strings.Repeat("╌", width))
	}
	if len(points) > width {
		points = points[len(points)-width:]
	}

	span := opts.Max - opts.Min
	if span <= 0 {
		span = 1
	}

	var sb strings.Builder
	for i := 0; i < width-len(points); i++ {
		sb.WriteString(dimStyle.Render("╌"))
	}

	for i, p := range points {
		if isTick(points, i, opts.TickEvery) {
			sb.WriteString(tickStyle.Render("│"))
			continue
		}
		norm := math.Max(0, math.Min(1, (p.Temp-opts.Min)/span))
		idx := int(norm * 7)
		if idx > 7 {
			idx = 7
		}
		style := lipgloss.NewStyle().Foreground(TempColor(p.Temp, opts.Threshold))
		if p.Alert {
			style = style.Bold(true)
		}
		sb.WriteString(style.Render(string(sparkBlocks[idx])))
	}
	return sb.String()
}

func isTick(points []history.Point, i int, every time.Duration) bool {
	if every <= 0 || i == 0 {
		return false
	}
	cur, prev := points[i].Time, points[i-1].Time
	if cur.IsZero() || prev.IsZero() {
		return false
	}
	return !cur.Truncate(every).Equal(prev.Truncate(every))
}

// RenderTimeline renders time labels under the sparkline at each tick
// position. Labels use HH:MM for minute or longer intervals and HH:MM:SS
// otherwise.
func RenderTimeline(points []history.Point, width int, every time.Duration) string {
	if len(points) == 0 || width <= 0 || every <= 0 {
		return ""
	}
	if len(points) > width {
		points = points[len(points)-width:]
	}
	padLen := width - len(points)

	layout := "15:04:05"
	if every >= time.Minute {
		layout = "15:04"
	}

	line := []rune(strings.Repeat(" ", width))
	lastEnd := -1
	for i, p := range points {
		if !isTick(points, i, every) {
			continue
		}
		label := p.Time.Format(layout)
		start := padLen + i - 2
		if start < 0 {
			start = 0
		}
		end := start + len(label)
		if end > width || start <= lastEnd+1 {
			continue
		}
		for j, ch := range label {
			line[start+j] = ch
		}
		lastEnd = end
	}
	return tickStyle.Render(string(line))
}

// RenderThresholdScale renders a bar showing the current value against the
// threshold.
func RenderThresholdScale(current, rangeMin, rangeMax, threshold float64, width int) string {
	if width <= 0 {
		return ""
	}
	span := rangeMax - rangeMin
	if span <= 0 {
		span = 1
	}
	pos := func(v float64) int {
		p := int(float64(width-1) * (v - rangeMin) / span)
		return max(0, min(width-1, p))
	}

	thresholdPos := -1
	if threshold > rangeMin && threshold <= rangeMax {
		thresholdPos = pos(threshold)
	}
	curPos := pos(current)

	var sb strings.Builder
	for i := 0; i < width; i++ {
		switch i {
		case curPos:
			style := lipgloss.NewStyle().Foreground(TempColor(current, threshold)).Bold(true)
			sb.WriteString(style.Render("◆"))
		case thresholdPos:
			sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("▪"))
		default:
			sb.WriteString(dimStyle.Render("·"))
		}
	}
	return sb.String()
}

// RenderTempValue renders the temperature value with color coding.
func RenderTempValue(temp, threshold float64) string {
	style := lipgloss.NewStyle().Foreground(TempColor(temp, threshold))
	if temp >= threshold {
		style = style.Bold(true)
	}
	return style.Render(fmt.Sprintf("%7.3f°C", temp))
}
