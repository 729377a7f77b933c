package viewer

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luki/simtemp/internal/sample"
	"github.com/luki/simtemp/internal/store"
)

func capture(t *testing.T) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	ds, err := store.New(dir)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for day := 0; day < 2; day++ {
		for i := 0; i < 30; i++ {
			s := sample.Sample{
				Timestamp:  base.Add(time.Duration(day)*24*time.Hour + time.Duration(i)*100*time.Millisecond),
				ValueMilli: int32(20000 + i*100),
				Flags:      sample.FlagNew,
			}
			if i == 12 {
				s.ValueMilli = 46000
				s.Flags |= sample.FlagThresholdCrossed
			}
			require.NoError(t, ds.Write(s))
		}
	}
	require.NoError(t, ds.Close())

	days, err := store.ListDays(dir)
	require.NoError(t, err)
	return dir, days
}

func press(m model, k string) model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
	return next.(model)
}

func TestNavigation(t *testing.T) {
	dir, days := capture(t)
	require.Equal(t, []string{"2026-03-02", "2026-03-01"}, days)

	m := newModel(dir, days, 45000)
	require.NoError(t, m.err)
	assert.Len(t, m.samples, 30)
	assert.Equal(t, 29, m.cursor, "cursor starts at the newest sample")

	m = press(m, "h")
	assert.Equal(t, 28, m.cursor)
	m = press(m, "L")
	assert.Equal(t, 29, m.cursor)
	m = press(m, "H")
	assert.Equal(t, 0, m.cursor)

	m = press(m, "n")
	assert.Equal(t, 12, m.cursor)
	assert.True(t, m.samples[m.cursor].Alert())
	m = press(m, "n")
	assert.Equal(t, 12, m.cursor, "single alert wraps onto itself")

	m = press(m, "[")
	assert.Equal(t, 1, m.dayIdx)
	assert.Equal(t, "2026-03-01", m.samples[0].Timestamp.Format("2006-01-02"))
	m = press(m, "[")
	assert.Equal(t, 1, m.dayIdx, "no older day")
	m = press(m, "]")
	assert.Equal(t, 0, m.dayIdx)
}

func TestWindowEndsAtCursor(t *testing.T) {
	dir, days := capture(t)
	m := newModel(dir, days, 45000)
	m.cursor = 5

	pts := m.window(10)
	require.Len(t, pts, 6)
	assert.True(t, pts[len(pts)-1].Time.Equal(m.samples[5].Timestamp))

	pts = m.window(3)
	require.Len(t, pts, 3)
	assert.True(t, pts[0].Time.Equal(m.samples[3].Timestamp))
}

func TestView(t *testing.T) {
	dir, days := capture(t)
	m := newModel(dir, days, 45000)
	assert.Contains(t, m.View(), "Loading")

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	view := next.(model).View()
	assert.Contains(t, view, "SIMTEMP CAPTURES")
	assert.Contains(t, view, "2026-03-02")
	assert.Contains(t, view, "30 samples")
}

func TestTickGap(t *testing.T) {
	dir, days := capture(t)
	m := newModel(dir, days, 45000)
	assert.Equal(t, time.Second, tickGap(m.window(20)))
	assert.Zero(t, tickGap(nil))
}
