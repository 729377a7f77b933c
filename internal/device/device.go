// Package device is the simulated temperature sensor: a periodic producer
// filling a bounded sample buffer, blocking and poll-style readers, and a
// configuration path serialized against production by one lock.
package device

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	catrate "github.com/joeycumines/go-catrate"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/luki/simtemp/internal/config"
	"github.com/luki/simtemp/internal/generator"
	"github.com/luki/simtemp/internal/history"
	"github.com/luki/simtemp/internal/notify"
	"github.com/luki/simtemp/internal/sample"
	"github.com/luki/simtemp/internal/scheduler"
)

var (
	// ErrWouldBlock is returned by a non-blocking read on an empty buffer.
	ErrWouldBlock = notify.ErrWouldBlock
	// ErrInterrupted is returned when a wait is cancelled or the device stops.
	ErrInterrupted = notify.ErrInterrupted
	// ErrStopped is returned by configuration changes after Stop.
	ErrStopped = errors.New("device stopped")
)

// Stats are the read-only counters of a device.
type Stats struct {
	SamplesTaken uint64
	AlertsRaised uint64
	Overruns     uint64 // samples evicted from a full buffer
	Missed       uint64 // ticks skipped because production overran
	Buffered     int
}

// Device is one running simulated sensor.
type Device struct {
	logger  *zap.Logger
	clock   clock.Clock
	gen     *generator.Generator
	limiter *catrate.Limiter

	mu           sync.Mutex
	cfg          config.Config
	counter      uint32
	samplesTaken uint64
	alertsRaised uint64
	newestAlert  bool // newest produced sample crossed the threshold
	buf          *history.Ring
	stopped      bool

	hub      *notify.Hub
	sched    *scheduler.Scheduler
	overruns atomic.Uint64
}

type options struct {
	logger   *zap.Logger
	clock    clock.Clock
	capacity int
	gen      *generator.Generator
	limiter  *catrate.Limiter
}

// Option configures Start.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the time source for ticks, timestamps and poll timeouts.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithCapacity sets the buffer capacity (default history.DefaultCapacity).
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithGenerator replaces the value generator.
func WithGenerator(g *generator.Generator) Option {
	return func(o *options) { o.gen = g }
}

// WithOverrunLimiter sets the limiter applied to overrun warnings. A nil
// limiter logs every overrun.
func WithOverrunLimiter(l *catrate.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// Start validates cfg, builds a device and arms its producer.
func Start(cfg config.Config, opts ...Option) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		capacity: history.DefaultCapacity,
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		}),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.gen == nil {
		o.gen = generator.New()
	}
	if o.capacity <= 0 {
		return nil, errors.Errorf("invalid buffer capacity %d", o.capacity)
	}

	d := &Device{
		logger:  o.logger,
		clock:   o.clock,
		gen:     o.gen,
		limiter: o.limiter,
		cfg:     cfg,
		buf:     history.NewRing(o.capacity),
	}
	d.hub = notify.New(&d.mu, d.clock)
	d.sched = scheduler.New(d.clock, d.produce)
	if err := d.sched.Arm(cfg.Period); err != nil {
		return nil, errors.Wrap(err, "arm scheduler")
	}

	d.logger.Info("simtemp started",
		zap.Duration("period", cfg.Period),
		zap.Int32("threshold_mC", cfg.ThresholdMilli),
		zap.Stringer("mode", cfg.Mode),
		zap.Int("capacity", o.capacity),
	)
	return d, nil
}

// produce is the scheduler callback. It never blocks and never fails. A
// tick that expired before a period change but lost the race for the lock
// is dropped; the next sample follows the new period.
func (d *Device) produce(expiry time.Time) {
	d.mu.Lock()
	if d.stopped || !d.sched.Current(expiry) {
		d.mu.Unlock()
		return
	}
	threshold := d.cfg.ThresholdMilli
	value, flags, next := d.gen.Produce(threshold, d.cfg.Mode, d.counter)
	d.counter = next
	s := sample.Sample{
		Timestamp:  d.clock.Now(),
		ValueMilli: value,
		Flags:      flags,
	}
	d.samplesTaken++
	if s.Alert() {
		d.alertsRaised++
	}
	d.newestAlert = s.Alert()
	evicted := d.buf.Push(s)
	d.mu.Unlock()

	if evicted {
		n := d.overruns.Inc()
		if _, ok := d.limiter.Allow("overrun"); ok {
			d.logger.Warn("sample buffer full, dropped oldest sample", zap.Uint64("overruns", n))
		}
	}
	if s.Alert() {
		d.logger.Info("threshold crossed",
			zap.Int32("temp_mC", value),
			zap.Int32("threshold_mC", threshold),
		)
	}
	d.logger.Debug("new sample",
		zap.Int32("temp_mC", value),
		zap.Int32("threshold_mC", threshold),
		zap.Stringer("flags", flags),
		zap.Time("ts", s.Timestamp),
	)

	d.hub.Notify()
}

// Read returns the oldest buffered sample. When the buffer is empty it
// fails with ErrWouldBlock if nonBlocking is set, and otherwise waits for
// the next sample. Cancelling ctx or stopping the device returns
// ErrInterrupted without consuming anything.
func (d *Device) Read(ctx context.Context, nonBlocking bool) (sample.Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.hub.WaitData(ctx, nonBlocking, d.readableLocked); err != nil {
		return sample.Sample{}, err
	}
	s, _ := d.buf.Pop()
	return s, nil
}

// Poll reports readiness, waiting up to timeout for the next sample when
// nothing is ready. A negative timeout waits indefinitely, zero never
// waits. Urgent is reported while the newest sample crossed the threshold
// and has not been read.
func (d *Device) Poll(ctx context.Context, timeout time.Duration) (notify.Mask, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hub.WaitReady(ctx, timeout, d.maskLocked)
}

func (d *Device) readableLocked() bool {
	return !d.buf.IsEmpty()
}

func (d *Device) maskLocked() notify.Mask {
	var m notify.Mask
	if d.buf.IsEmpty() {
		return m
	}
	m |= notify.Readable
	if d.newestAlert {
		m |= notify.Urgent
	}
	return m
}

// Stats returns a snapshot of the counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		SamplesTaken: d.samplesTaken,
		AlertsRaised: d.alertsRaised,
		Overruns:     d.overruns.Load(),
		Missed:       d.sched.Missed(),
		Buffered:     d.buf.Len(),
	}
}

// Waiters returns the number of readers and pollers currently blocked.
func (d *Device) Waiters() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hub.Waiters()
}

// Stop cancels the producer and releases every waiter with
// ErrInterrupted. It returns once all waiters are gone. Stop is idempotent.
func (d *Device) Stop() error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	d.mu.Unlock()

	d.sched.Cancel()

	d.mu.Lock()
	d.hub.Close()
	d.hub.Drain()
	st := Stats{
		SamplesTaken: d.samplesTaken,
		AlertsRaised: d.alertsRaised,
		Overruns:     d.overruns.Load(),
		Buffered:     d.buf.Len(),
	}
	d.mu.Unlock()

	d.logger.Info("simtemp stopped",
		zap.Uint64("samples", st.SamplesTaken),
		zap.Uint64("alerts", st.AlertsRaised),
		zap.Uint64("overruns", st.Overruns),
		zap.Int("unread", st.Buffered),
	)
	return nil
}
