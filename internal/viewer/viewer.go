// Package viewer implements the capture browser TUI with time scrubbing,
// day navigation, and a sparkline window ending at the cursor.
package viewer

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/luki/simtemp/internal/chart"
	"github.com/luki/simtemp/internal/history"
	"github.com/luki/simtemp/internal/sample"
	"github.com/luki/simtemp/internal/store"
)

// skip is how many samples H/L jump.
const skip = 100

// Run launches the browser over the captures in dir. thresholdMilli
// colors the sparkline; samples keep the alert flag they were recorded
// with regardless.
func Run(dir string, thresholdMilli int32) error {
	days, err := store.ListDays(dir)
	if err != nil {
		return errors.Wrap(err, "list captures")
	}
	if len(days) == 0 {
		return errors.Errorf("no captures in %s", dir)
	}

	p := tea.NewProgram(
		newModel(dir, days, thresholdMilli),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err = p.Run()
	return err
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("17")
	colorTitleFg  = lipgloss.Color("51")
	colorBorder   = lipgloss.Color("62")
	colorLabel    = lipgloss.Color("252")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorCursor   = lipgloss.Color("214")
	colorCrit     = lipgloss.Color("196")
)

// ── Model ────────────────────────────────────────────────────────────

type model struct {
	dir       string
	days      []string // newest first
	dayIdx    int
	threshold float64 // °C
	samples   []sample.Sample
	cursor    int
	width     int
	height    int
	err       error
}

func newModel(dir string, days []string, thresholdMilli int32) model {
	m := model{
		dir:       dir,
		days:      days,
		threshold: float64(thresholdMilli) / 1000,
	}
	m.loadDay()
	return m
}

func (m *model) loadDay() {
	samples, err := store.LoadDay(m.dir, m.days[m.dayIdx])
	if err != nil {
		m.err = err
		m.samples = nil
		m.cursor = 0
		return
	}
	m.err = nil
	m.samples = samples
	m.cursor = max(0, len(samples)-1)
}

// ── Init / Update ────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		last := max(0, len(m.samples)-1)
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "left", "h":
			m.cursor = max(0, m.cursor-1)
		case "right", "l":
			m.cursor = min(last, m.cursor+1)
		case "shift+left", "H":
			m.cursor = max(0, m.cursor-skip)
		case "shift+right", "L":
			m.cursor = min(last, m.cursor+skip)
		case "home":
			m.cursor = 0
		case "end":
			m.cursor = last
		case "n":
			m.cursor = m.nextAlert()

		case "[":
			if m.dayIdx < len(m.days)-1 {
				m.dayIdx++
				m.loadDay()
			}
		case "]":
			if m.dayIdx > 0 {
				m.dayIdx--
				m.loadDay()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

// nextAlert returns the index of the first alert after the cursor, wrapping
// around, or the cursor itself if the day has none.
func (m model) nextAlert() int {
	n := len(m.samples)
	for i := 1; i <= n; i++ {
		idx := (m.cursor + i) % n
		if m.samples[idx].Alert() {
			return idx
		}
	}
	return m.cursor
}

// ── View ─────────────────────────────────────────────────────────────

func (m model) View() string {
	if m.width == 0 {
		return "  Loading..."
	}

	contentWidth := max(40, m.width-2)
	sections := []string{m.renderTitle(contentWidth)}

	if m.err != nil {
		errBox := lipgloss.NewStyle().
			Foreground(colorCrit).
			Bold(true).
			Padding(0, 1).
			Render(fmt.Sprintf("ERROR: %v", m.err))
		sections = append(sections, errBox)
	}

	if len(m.samples) == 0 {
		empty := lipgloss.NewStyle().
			Foreground(colorDim).
			Padding(2, 0).
			Align(lipgloss.Center).
			Width(contentWidth).
			Render("No samples for this day.")
		sections = append(sections, empty)
	} else {
		sections = append(sections, m.renderCursorInfo(contentWidth), m.renderPanel(contentWidth))
	}
	sections = append(sections, m.renderFooter(contentWidth))

	lines := strings.Split(lipgloss.JoinVertical(lipgloss.Left, sections...), "\n")
	if m.height > 0 && len(lines) > m.height {
		lines = lines[:m.height]
	}
	return strings.Join(lines, "\n")
}

func (m model) renderTitle(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("SIMTEMP CAPTURES")

	dayText := lipgloss.NewStyle().
		Foreground(colorCursor).
		Bold(true).
		Render(m.days[m.dayIdx])

	nav := lipgloss.NewStyle().
		Foreground(colorDim).
		Render(fmt.Sprintf("  [ %d/%d ]", m.dayIdx+1, len(m.days)))

	dataInfo := ""
	if len(m.samples) > 0 {
		first := m.samples[0].Timestamp.UTC().Format("15:04:05")
		last := m.samples[len(m.samples)-1].Timestamp.UTC().Format("15:04:05")
		dataInfo = lipgloss.NewStyle().
			Foreground(colorDim).
			Render(fmt.Sprintf("  %s - %s  (%d samples)", first, last, len(m.samples)))
	}

	right := dayText + nav + dataInfo
	gap := max(1, width-lipgloss.Width(logo)-lipgloss.Width(right)-4)

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

func (m model) renderCursorInfo(width int) string {
	s := m.samples[m.cursor]
	ts := lipgloss.NewStyle().
		Foreground(colorCursor).
		Bold(true).
		Render(sample.FormatTimestamp(s.Timestamp))

	pos := lipgloss.NewStyle().
		Foreground(colorDim).
		Render(fmt.Sprintf("  %d/%d", m.cursor+1, len(m.samples)))

	return lipgloss.NewStyle().
		Padding(0, 1).
		Render("  " + ts + pos + "  " + m.renderScrubber(max(10, width-45)))
}

// renderScrubber draws the cursor position across the day with a red mark
// wherever a bucket of samples holds an alert.
func (m model) renderScrubber(width int) string {
	n := len(m.samples)
	if n == 0 || width <= 0 {
		return ""
	}

	pos := 0
	if n > 1 {
		pos = m.cursor * (width - 1) / (n - 1)
	}

	dimS := lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	curS := lipgloss.NewStyle().Foreground(colorCursor).Bold(true)
	alertS := lipgloss.NewStyle().Foreground(colorCrit)

	var sb strings.Builder
	for i := 0; i < width; i++ {
		if i == pos {
			sb.WriteString(curS.Render("◆"))
			continue
		}
		lo, hi := i*n/width, (i+1)*n/width
		alert := false
		for j := lo; j < hi && j < n; j++ {
			if m.samples[j].Alert() {
				alert = true
				break
			}
		}
		if alert {
			sb.WriteString(alertS.Render("╽"))
		} else {
			sb.WriteString(dimS.Render("─"))
		}
	}
	return sb.String()
}

func (m model) renderPanel(totalWidth int) string {
	chartWidth := min(140, max(15, totalWidth-4-50))

	window := m.window(chartWidth)
	minV, maxV := math.MaxFloat64, -math.MaxFloat64
	alerts := 0
	sum := 0.0
	for _, s := range m.samples {
		v := s.Celsius()
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
		sum += v
		if s.Alert() {
			alerts++
		}
	}
	avg := sum / float64(len(m.samples))
	rangeMin := math.Max(0, minV-5)
	rangeMax := math.Max(maxV, m.threshold) + 5

	cur := m.samples[m.cursor]
	label := lipgloss.NewStyle().Foreground(colorLabel).Bold(true).Width(6).Render("temp")
	temp := chart.RenderTempValue(cur.Celsius(), m.threshold)
	tickEvery := tickGap(window)
	spark := chart.RenderSparklinePoints(window, chart.Options{
		Width:     chartWidth,
		Min:       rangeMin,
		Max:       rangeMax,
		Threshold: m.threshold,
		TickEvery: tickEvery,
	})

	frameL := lipgloss.NewStyle().Foreground(colorBorder).Render("▕")
	frameR := lipgloss.NewStyle().Foreground(colorBorder).Render("▏")

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	stats := dimS.Render(" avg") + valS.Render(fmt.Sprintf("%7.3f", avg)) +
		dimS.Render(" lo") + valS.Render(fmt.Sprintf("%7.3f", minV)) +
		dimS.Render(" pk") + valS.Render(fmt.Sprintf("%7.3f", maxV)) +
		dimS.Render(" alerts ") + lipgloss.NewStyle().Foreground(colorCrit).Render(fmt.Sprint(alerts))

	rows := []string{label + " " + temp + " " + frameL + spark + frameR + stats}
	if timeline := chart.RenderTimeline(window, chartWidth, tickEvery); strings.TrimSpace(timeline) != "" {
		pad := strings.Repeat(" ", lipgloss.Width(label)+lipgloss.Width(temp)+2)
		rows = append(rows, pad+" "+timeline)
	}
	rows = append(rows, dimS.Render(fmt.Sprintf("flags %s", cur.Flags)))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(totalWidth).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// window returns up to width points ending at the cursor.
func (m model) window(width int) []history.Point {
	start := max(0, m.cursor-width+1)
	trend := history.NewTrend(width)
	for _, s := range m.samples[start : m.cursor+1] {
		trend.Push(s)
	}
	return trend.Points
}

func (m model) renderFooter(width int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	keyS := lipgloss.NewStyle().Foreground(colorLabel)

	keys := dimS.Render("q") + keyS.Render(":quit") +
		dimS.Render("  h/l") + keyS.Render(":scrub") +
		dimS.Render("  H/L") + keyS.Render(fmt.Sprintf(":skip %d", skip)) +
		dimS.Render("  home/end") + keyS.Render(":jump") +
		dimS.Render("  n") + keyS.Render(":next alert") +
		dimS.Render("  [/]") + keyS.Render(":day")

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(keys)
}

// ── Helpers ──────────────────────────────────────────────────────────

// tickGap spaces tick marks about ten points apart, judged by the spacing
// of the first two points in the window.
func tickGap(pts []history.Point) time.Duration {
	if len(pts) < 2 {
		return 0
	}
	step := pts[1].Time.Sub(pts[0].Time)
	switch gap := step * 10; {
	case gap <= 0:
		return 0
	case gap <= time.Second:
		return time.Second
	case gap <= 10*time.Second:
		return 10 * time.Second
	default:
		return time.Minute
	}
}
