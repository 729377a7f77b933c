package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luki/simtemp/internal/chart"
	"github.com/luki/simtemp/internal/config"
	"github.com/luki/simtemp/internal/control"
	"github.com/luki/simtemp/internal/device"
	"github.com/luki/simtemp/internal/history"
	"github.com/luki/simtemp/internal/monitor"
	"github.com/luki/simtemp/internal/notify"
	"github.com/luki/simtemp/internal/sample"
	"github.com/luki/simtemp/internal/store"
	"github.com/luki/simtemp/internal/viewer"
)

const defaultStreamCount = 10

var alertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

func pollAction(ctx context.Context, c *cli.Context, s *session) error {
	return stream(ctx, c.App.Writer, s, c.Int(flagCount))
}

func setAction(ctx context.Context, c *cli.Context, s *session) error {
	if c.NArg() == 0 {
		return errors.New("set: expected at least one name=value")
	}
	for _, arg := range c.Args().Slice() {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return errors.Errorf("set: %q is not name=value", arg)
		}
		if err := control.SetAttribute(s.dev, name, value); err != nil {
			return errors.Wrapf(err, "set %s", name)
		}
	}
	return stream(ctx, c.App.Writer, s, streamCount(c))
}

func setAllAction(ctx context.Context, c *cli.Context, s *session) error {
	if c.NArg() != 1 {
		return errors.New("set-all: expected exactly one ms:mC:mode argument")
	}
	if err := control.SetAll(s.dev, c.Args().First()); err != nil {
		return errors.Wrap(err, "set-all")
	}
	return stream(ctx, c.App.Writer, s, streamCount(c))
}

func streamCount(c *cli.Context) int {
	if c.IsSet(flagCount) {
		return c.Int(flagCount)
	}
	return defaultStreamCount
}

// alertLatch turns the level-triggered urgent bit into one live alert per
// run of urgent polls. Urgent stays set while older samples are drained.
type alertLatch struct {
	urgent bool
}

func (l *alertLatch) rise(mask notify.Mask) bool {
	was := l.urgent
	l.urgent = mask&notify.Urgent != 0
	return l.urgent && !was
}

// stream polls the sensor and prints every sample it reads until count
// samples were printed or ctx is done. The first urgent poll of a run
// prints a live alert line.
func stream(ctx context.Context, w io.Writer, s *session, count int) error {
	var latch alertLatch
	printed := 0
	for count <= 0 || printed < count {
		mask, err := s.dev.Poll(ctx, -1)
		if err != nil {
			return ignoreInterrupt(err)
		}
		if latch.rise(mask) {
			fmt.Fprintln(w, alertStyle.Render(sample.FormatTimestamp(time.Now())+" live alert"))
		}
		if mask&notify.Readable == 0 {
			continue
		}
		smp, err := s.dev.Read(ctx, true)
		if errors.Is(err, device.ErrWouldBlock) {
			continue
		}
		if err != nil {
			return ignoreInterrupt(err)
		}
		if err := consume(w, s, smp); err != nil {
			return err
		}
		printed++
	}
	return nil
}

func consume(w io.Writer, s *session, smp sample.Sample) error {
	fmt.Fprintln(w, smp)
	if s.store == nil {
		return nil
	}
	return errors.Wrap(s.store.Write(smp), "record")
}

func ignoreInterrupt(err error) error {
	if errors.Is(err, device.ErrInterrupted) {
		return nil
	}
	return err
}

func monitorAction(ctx context.Context, _ *cli.Context, s *session) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(monitor.New(ctx, s.dev, s.store), tea.WithAltScreen())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		p.Quit()
		return nil
	})
	return g.Wait()
}

func dumpAction(ctx context.Context, c *cli.Context, s *session) (err error) {
	out := c.App.Writer
	if path := c.String(flagOut); path != "-" {
		f, cerr := os.Create(path)
		if cerr != nil {
			return errors.Wrap(cerr, "dump")
		}
		defer func() { err = multierr.Append(err, f.Close()) }()
		out = f
	}
	bw := bufio.NewWriter(out)
	defer func() { err = multierr.Append(err, bw.Flush()) }()

	enc := sample.NewEncoder(bw)
	count := c.Int(flagCount)
	for i := 0; count <= 0 || i < count; i++ {
		smp, err := s.dev.Read(ctx, false)
		if err != nil {
			return ignoreInterrupt(err)
		}
		if err := enc.Encode(smp); err != nil {
			return errors.Wrap(err, "encode")
		}
		if s.store != nil {
			if err := s.store.Write(smp); err != nil {
				return errors.Wrap(err, "record")
			}
		}
		s.logger.Debug("dumped sample", zap.Int("index", i), zap.Stringer("sample", smp))
	}
	return nil
}

func decodeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("decode: expected a file")
	}
	f, err := os.Open(c.Args().First())
	if err != nil {
		return errors.Wrap(err, "decode")
	}
	defer f.Close()

	dec := sample.NewDecoder(bufio.NewReader(f))
	for {
		smp, err := dec.Decode()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "decode")
		}
		fmt.Fprintf(c.App.Writer, "%s flags=%s\n", smp, smp.Flags)
	}
}

func statsAction(ctx context.Context, c *cli.Context, s *session) error {
	select {
	case <-ctx.Done():
	case <-time.After(c.Duration(flagDuration)):
	}
	for _, name := range control.Names {
		v, err := control.Attribute(s.dev, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s: %s\n", name, v)
	}
	return nil
}

func recordDir(c *cli.Context) (string, error) {
	dir := c.String(flagRecord)
	if dir == "" {
		return "", errors.New("no capture directory, set --record or SIMTEMP_RECORD")
	}
	return dir, nil
}

func historyListAction(c *cli.Context) error {
	dir, err := recordDir(c)
	if err != nil {
		return err
	}
	days, err := store.ListDays(dir)
	if err != nil {
		return errors.Wrap(err, "list captures")
	}
	for _, d := range days {
		fmt.Fprintln(c.App.Writer, d)
	}
	return nil
}

func historyShowAction(c *cli.Context) error {
	dir, err := recordDir(c)
	if err != nil {
		return err
	}
	if c.NArg() != 1 {
		return errors.New("history show: expected a day")
	}
	samples, err := store.LoadDay(dir, c.Args().First())
	if err != nil {
		return errors.Wrap(err, "load capture")
	}
	if len(samples) == 0 {
		fmt.Fprintln(c.App.Writer, "no samples")
		return nil
	}

	trend := history.NewTrend(len(samples))
	for _, smp := range samples {
		trend.Push(smp)
	}
	// colors are relative to the peak unless a threshold is given
	threshold := trend.Peak + 1
	if c.IsSet(flagThreshold) {
		mc, err := config.ThresholdFromMilli(c.Int64(flagThreshold))
		if err != nil {
			return err
		}
		threshold = float64(mc) / 1000
	}

	const width = 60
	fmt.Fprintf(c.App.Writer, "%d samples  %s .. %s\n", len(samples),
		sample.FormatTimestamp(samples[0].Timestamp), sample.FormatTimestamp(samples[len(samples)-1].Timestamp))
	fmt.Fprintf(c.App.Writer, "avg %.3f  lo %.3f  pk %.3f  alerts %d\n", trend.Avg(), trend.Min, trend.Peak, trend.Alerts)
	fmt.Fprintln(c.App.Writer, chart.RenderSparklinePoints(trend.LastNPoints(width), chart.Options{
		Width:     width,
		Min:       math.Max(0, trend.Min-5),
		Max:       math.Max(trend.Peak, threshold) + 5,
		Threshold: threshold,
	}))
	return nil
}

func historyBrowseAction(c *cli.Context) error {
	dir, err := recordDir(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return viewer.Run(dir, cfg.ThresholdMilli)
}
