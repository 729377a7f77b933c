// Package scheduler fires a callback once per period, re-arming from each
// timer's own expiry so callback latency does not accumulate as drift.
package scheduler

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

var (
	ErrNotIdle       = errors.New("scheduler: already armed or cancelled")
	ErrNotArmed      = errors.New("scheduler: not armed")
	ErrInvalidPeriod = errors.New("scheduler: period must be positive")
)

// State is the lifecycle state of a Scheduler.
type State int

const (
	Idle State = iota
	Armed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Scheduler calls fire with the scheduled expiry time of each tick.
type Scheduler struct {
	clock clock.Clock
	fire  func(expiry time.Time)

	mu     sync.Mutex
	state  State
	period time.Duration
	due    time.Time    // expiry of the armed timer
	timer  *clock.Timer // nil unless armed
	gen    uint64       // bumped whenever the armed timer is replaced

	inflight sync.WaitGroup
	missed   atomic.Uint64
}

// New creates an idle scheduler. A nil clock uses the real clock.
func New(clk clock.Clock, fire func(expiry time.Time)) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{clock: clk, fire: fire}
}

// Arm schedules the first fire after period.
func (s *Scheduler) Arm(period time.Duration) error {
	if period <= 0 {
		return errors.Wrapf(ErrInvalidPeriod, "%v", period)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return errors.Wrap(ErrNotIdle, s.state.String())
	}
	s.state = Armed
	s.period = period
	s.armLocked(s.clock.Now().Add(period))
	return nil
}

// Reconfigure discards the outstanding tick and fires next at now+period,
// then every period after that.
func (s *Scheduler) Reconfigure(period time.Duration) error {
	if period <= 0 {
		return errors.Wrapf(ErrInvalidPeriod, "%v", period)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Armed {
		return errors.Wrap(ErrNotArmed, s.state.String())
	}
	s.timer.Stop()
	s.period = period
	s.armLocked(s.clock.Now().Add(period))
	return nil
}

// Cancel stops the scheduler for good and waits for an in-flight fire to
// return. It is idempotent and must not be called from the fire callback.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	if s.state == Armed {
		s.timer.Stop()
		s.timer = nil
		s.gen++
	}
	s.state = Cancelled
	s.mu.Unlock()

	s.inflight.Wait()
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Period returns the current period.
func (s *Scheduler) Period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}

// Due returns the expiry of the next tick, or the zero time if not armed.
func (s *Scheduler) Due() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Armed {
		return time.Time{}
	}
	return s.due
}

// Current reports whether expiry is the tick the scheduler is armed for.
// A fire that was already under way when Reconfigure or Cancel ran is no
// longer current, so callers serialized against those calls can drop it.
func (s *Scheduler) Current(expiry time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Armed && s.due.Equal(expiry)
}

// Missed returns how many ticks were skipped because a fire overran.
func (s *Scheduler) Missed() uint64 {
	return s.missed.Load()
}

func (s *Scheduler) armLocked(due time.Time) {
	s.gen++
	gen := s.gen
	s.due = due
	s.timer = s.clock.AfterFunc(due.Sub(s.clock.Now()), func() { s.expire(gen) })
}

func (s *Scheduler) expire(gen uint64) {
	s.mu.Lock()
	if s.state != Armed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	expiry := s.due
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	s.fire(expiry)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Armed || gen != s.gen {
		// cancelled or reconfigured while firing
		return
	}
	s.armLocked(s.forward(expiry, s.clock.Now()))
}

// forward returns the first expiry after now on the grid expiry+k*period.
func (s *Scheduler) forward(expiry, now time.Time) time.Time {
	next := expiry.Add(s.period)
	if next.After(now) {
		return next
	}
	skipped := now.Sub(expiry) / s.period
	s.missed.Add(uint64(skipped))
	return expiry.Add((skipped + 1) * s.period)
}
