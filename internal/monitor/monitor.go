// Package monitor implements the live temperature monitoring TUI using
// BubbleTea with a real-time sparkline and color-coded threshold.
package monitor

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/luki/simtemp/internal/chart"
	"github.com/luki/simtemp/internal/config"
	"github.com/luki/simtemp/internal/control"
	"github.com/luki/simtemp/internal/device"
	"github.com/luki/simtemp/internal/history"
	"github.com/luki/simtemp/internal/sample"
	"github.com/luki/simtemp/internal/store"
)

const (
	statsInterval  = 1 * time.Second
	trendSize      = 600
	thresholdStep  = 1000 // mC
	defaultTickGap = time.Second
)

// ── Messages ─────────────────────────────────────────────────────────

type tickMsg time.Time

type sampleMsg sample.Sample

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// ── Model ────────────────────────────────────────────────────────────

// Model is the BubbleTea model for the live monitor.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	dev    *device.Device
	store  *store.DiskStore

	trend     *history.Trend
	cfg       config.Config
	stats     device.Stats
	last      sample.Sample
	err       error
	width     int
	height    int
	startTime time.Time
	paused    bool
	reading   bool
}

// New creates the monitor for dev. Consumed samples are appended to ds
// when it is non-nil; the caller owns and closes ds.
func New(ctx context.Context, dev *device.Device, ds *store.DiskStore) Model {
	ctx, cancel := context.WithCancel(ctx)
	return Model{
		ctx:       ctx,
		cancel:    cancel,
		dev:       dev,
		store:     ds,
		trend:     history.NewTrend(trendSize),
		cfg:       dev.Config(),
		stats:     dev.Stats(),
		startTime: time.Now(),
	}
}

// ── Commands ─────────────────────────────────────────────────────────

func tickCmd() tea.Cmd {
	return tea.Tick(statsInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) readCmd() tea.Cmd {
	return func() tea.Msg {
		s, err := m.dev.Read(m.ctx, false)
		if err != nil {
			return errMsg{err}
		}
		return sampleMsg(s)
	}
}

// ── Init / Update ────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.readCmd(), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats = m.dev.Stats()
		m.cfg = m.dev.Config()
		return m, tickCmd()

	case sampleMsg:
		s := sample.Sample(msg)
		m.reading = false
		m.last = s
		m.trend.Push(s)
		if m.store != nil {
			if err := m.store.Write(s); err != nil {
				m.err = errors.Wrap(err, "record")
			}
		}
		if m.paused {
			return m, nil
		}
		m.reading = true
		return m, m.readCmd()

	case errMsg:
		m.reading = false
		if errors.Is(msg.err, device.ErrInterrupted) {
			return m, nil
		}
		m.err = msg.err
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.cancel()
		return m, tea.Quit
	case " ", "p":
		m.paused = !m.paused
		if !m.paused && !m.reading {
			m.reading = true
			return m, m.readCmd()
		}
	case "m":
		next := config.ModeRamp
		if m.cfg.Mode == config.ModeRamp {
			next = config.ModeNormal
		}
		m.apply(control.Mode, next.String())
	case "+", "=":
		m.apply(control.ThresholdMC, fmt.Sprint(m.cfg.ThresholdMilli+thresholdStep))
	case "-":
		m.apply(control.ThresholdMC, fmt.Sprint(m.cfg.ThresholdMilli-thresholdStep))
	case "]":
		m.apply(control.SamplingMs, fmt.Sprint(config.Millis(m.cfg.Period)*2))
	case "[":
		m.apply(control.SamplingMs, fmt.Sprint(config.Millis(m.cfg.Period)/2))
	}
	return m, nil
}

// apply sets one attribute and refreshes the cached config. Rejected
// values are shown in the error line and change nothing.
func (m *Model) apply(name, value string) {
	m.err = control.SetAttribute(m.dev, name, value)
	m.cfg = m.dev.Config()
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("17")
	colorTitleFg  = lipgloss.Color("51")
	colorBorder   = lipgloss.Color("62")
	colorLabel    = lipgloss.Color("252")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorOk       = lipgloss.Color("78")
	colorWarn     = lipgloss.Color("220")
	colorCrit     = lipgloss.Color("196")
	colorPaused   = lipgloss.Color("196")
)

// ── View ─────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}

	contentWidth := m.width - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	sections := []string{m.renderTitleBar(contentWidth)}

	if m.err != nil {
		errBox := lipgloss.NewStyle().
			Foreground(colorCrit).
			Bold(true).
			Width(contentWidth).
			Padding(0, 1).
			Render(fmt.Sprintf(" ERROR: %v", m.err))
		sections = append(sections, errBox)
	}

	if len(m.trend.Points) == 0 {
		waiting := lipgloss.NewStyle().
			Foreground(colorDim).
			Width(contentWidth).
			Align(lipgloss.Center).
			Padding(2, 0).
			Render("Waiting for samples...")
		sections = append(sections, waiting)
	} else {
		sections = append(sections, m.renderTrendPanel(contentWidth))
	}
	sections = append(sections, m.renderStatsPanel(contentWidth))
	sections = append(sections, m.renderFooter(contentWidth))

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	lines := strings.Split(content, "\n")
	if m.height > 0 && len(lines) > m.height {
		lines = lines[:m.height]
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderTitleBar(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("SIMTEMP MONITOR")

	dim := lipgloss.NewStyle().Foreground(colorDim)
	statusParts := []string{dim.Render(fmt.Sprintf("up %s", fmtDuration(time.Since(m.startTime))))}

	if !m.last.Timestamp.IsZero() {
		statusParts = append(statusParts, dim.Render(m.last.Timestamp.Format("15:04:05.000")))
	}

	if m.paused {
		p := lipgloss.NewStyle().
			Foreground(colorPaused).
			Bold(true).
			Render("PAUSED")
		statusParts = append(statusParts, p)
	}

	if m.store != nil {
		rec := lipgloss.NewStyle().Foreground(colorCrit).Render("REC") + dim.Render(" "+m.store.Dir())
		statusParts = append(statusParts, rec)
	}

	sep := dim.Render(" │ ")
	right := strings.Join(statusParts, sep)

	gap := width - lipgloss.Width(logo) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

func (m Model) renderTrendPanel(totalWidth int) string {
	innerWidth := totalWidth - 4
	chartWidth := innerWidth - 50
	if chartWidth < 15 {
		chartWidth = 15
	}
	if chartWidth > 140 {
		chartWidth = 140
	}

	threshold := float64(m.cfg.ThresholdMilli) / 1000
	rangeMin := math.Max(0, m.trend.Min-5)
	rangeMax := math.Max(m.trend.Peak, threshold) + 5

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	frameL := lipgloss.NewStyle().Foreground(colorBorder).Render("▕")
	frameR := lipgloss.NewStyle().Foreground(colorBorder).Render("▏")

	pts := m.trend.LastNPoints(chartWidth)
	spark := chart.RenderSparklinePoints(pts, chart.Options{
		Width:     chartWidth,
		Min:       rangeMin,
		Max:       rangeMax,
		Threshold: threshold,
		TickEvery: tickGap(m.cfg.Period),
	})

	temp := chart.RenderTempValue(m.trend.Last(), threshold)
	stats := dimS.Render(" avg") + valS.Render(fmt.Sprintf("%7.3f", m.trend.Avg())) +
		dimS.Render(" lo") + valS.Render(fmt.Sprintf("%7.3f", m.trend.Min)) +
		dimS.Render(" pk") + valS.Render(fmt.Sprintf("%7.3f", m.trend.Peak))

	label := lipgloss.NewStyle().Foreground(colorLabel).Width(6).Render("temp")
	rows := []string{label + " " + temp + " " + frameL + spark + frameR + stats}

	if timeline := chart.RenderTimeline(pts, chartWidth, tickGap(m.cfg.Period)); strings.TrimSpace(timeline) != "" {
		pad := strings.Repeat(" ", lipgloss.Width(label)+lipgloss.Width(temp)+2)
		rows = append(rows, pad+" "+timeline)
	}

	scale := chart.RenderThresholdScale(m.trend.Last(), rangeMin, rangeMax, threshold, chartWidth)
	rows = append(rows, strings.Repeat(" ", lipgloss.Width(label)+1)+dimS.Render("scale ")+scale)

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(totalWidth).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m Model) renderStatsPanel(totalWidth int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	kv := func(k string, v any) string {
		return dimS.Render(k+" ") + valS.Render(fmt.Sprint(v))
	}

	cfgRow := strings.Join([]string{
		kv("period", m.cfg.Period),
		kv("threshold", fmt.Sprintf("%d mC", m.cfg.ThresholdMilli)),
		kv("mode", m.cfg.Mode),
	}, "   ")
	statsRow := strings.Join([]string{
		kv("samples", m.stats.SamplesTaken),
		kv("alerts", m.stats.AlertsRaised),
		kv("overruns", m.stats.Overruns),
		kv("missed", m.stats.Missed),
		kv("buffered", m.stats.Buffered),
		kv("seen alerts", m.trend.Alerts),
	}, "   ")

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(totalWidth).
		Render(lipgloss.JoinVertical(lipgloss.Left, cfgRow, statsRow))
}

func (m Model) renderFooter(width int) string {
	okS := lipgloss.NewStyle().Foreground(colorOk).Render("██")
	warnS := lipgloss.NewStyle().Foreground(colorWarn).Render("██")
	critS := lipgloss.NewStyle().Foreground(colorCrit).Render("██")
	tickS := lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Render("│")

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	keyS := lipgloss.NewStyle().Foreground(colorLabel)
	legend := okS + dimS.Render(" ok ") +
		warnS + dimS.Render(" warm ") +
		critS + dimS.Render(" alert ") +
		tickS + dimS.Render(" "+tickGap(m.cfg.Period).String())

	keys := dimS.Render("q") + keyS.Render(":quit") +
		dimS.Render("  p") + keyS.Render(":pause") +
		dimS.Render("  m") + keyS.Render(":mode") +
		dimS.Render("  +/-") + keyS.Render(":threshold") +
		dimS.Render("  [/]") + keyS.Render(":period")

	gap := width - lipgloss.Width(legend) - lipgloss.Width(keys) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(legend + strings.Repeat(" ", gap) + keys)
}

// tickGap picks a tick interval that leaves roughly ten samples between
// marks.
func tickGap(period time.Duration) time.Duration {
	switch gap := period * 10; {
	case gap <= defaultTickGap:
		return defaultTickGap
	case gap <= 10*time.Second:
		return 10 * time.Second
	default:
		return time.Minute
	}
}

func fmtDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
