package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects fire expiries.
type recorder struct {
	mu       sync.Mutex
	expiries []time.Time
	hold     chan struct{} // if non-nil, fire blocks until it is closed
	entered  chan struct{}
}

func (r *recorder) fire(expiry time.Time) {
	r.mu.Lock()
	r.expiries = append(r.expiries, expiry)
	hold, entered := r.hold, r.entered
	r.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if hold != nil {
		<-hold
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.expiries)
}

func (r *recorder) last() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expiries[len(r.expiries)-1]
}

// step advances the mock clock by d and waits for the scheduler to re-arm
// at wantDue.
func step(t *testing.T, mock *clock.Mock, s *Scheduler, d time.Duration, wantDue time.Time) {
	t.Helper()
	mock.Add(d)
	require.Eventually(t, func() bool { return s.Due().Equal(wantDue) }, time.Second, time.Millisecond,
		"due=%v want=%v", s.Due(), wantDue)
}

func TestFiresEveryPeriod(t *testing.T) {
	mock := clock.NewMock()
	rec := &recorder{}
	s := New(mock, rec.fire)
	const period = 100 * time.Millisecond

	t0 := mock.Now()
	require.NoError(t, s.Arm(period))
	assert.Equal(t, Armed, s.State())
	assert.Equal(t, t0.Add(period), s.Due())

	for i := 1; i <= 5; i++ {
		step(t, mock, s, period, t0.Add(time.Duration(i+1)*period))
		require.Equal(t, i, rec.count())
		assert.Equal(t, t0.Add(time.Duration(i)*period), rec.last())
	}
	s.Cancel()
}

func TestRearmsFromExpiryNotCallbackTime(t *testing.T) {
	mock := clock.NewMock()
	rec := &recorder{}
	s := New(mock, rec.fire)
	const period = 100 * time.Millisecond
	const jitter = 7 * time.Millisecond

	t0 := mock.Now()
	require.NoError(t, s.Arm(period))

	// every tick below is observed jitter late; the grid must not move
	mock.Add(jitter)
	for i := 1; i <= 4; i++ {
		step(t, mock, s, period, t0.Add(time.Duration(i+1)*period))
		assert.Equal(t, t0.Add(time.Duration(i)*period), rec.last())
	}
	assert.Zero(t, s.Missed())
	s.Cancel()
}

func TestOverrunSkipsMissedTicks(t *testing.T) {
	mock := clock.NewMock()
	rec := &recorder{hold: make(chan struct{}), entered: make(chan struct{}, 1)}
	s := New(mock, rec.fire)
	const period = 10 * time.Millisecond

	t0 := mock.Now()
	require.NoError(t, s.Arm(period))
	mock.Add(period)
	<-rec.entered

	// the callback is stuck for three more periods
	mock.Add(3 * period)
	close(rec.hold)

	require.Eventually(t, func() bool { return s.Due().Equal(t0.Add(5 * period)) }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(3), s.Missed())
	assert.Equal(t, 1, rec.count())
	s.Cancel()
}

func TestReconfigureRestartsFromNow(t *testing.T) {
	mock := clock.NewMock()
	rec := &recorder{}
	s := New(mock, rec.fire)

	t0 := mock.Now()
	require.NoError(t, s.Arm(100*time.Millisecond))

	mock.Add(40 * time.Millisecond)
	require.NoError(t, s.Reconfigure(50*time.Millisecond))
	assert.Equal(t, t0.Add(90*time.Millisecond), s.Due())
	assert.Equal(t, 50*time.Millisecond, s.Period())

	step(t, mock, s, 50*time.Millisecond, t0.Add(140*time.Millisecond))
	require.Equal(t, 1, rec.count())
	assert.Equal(t, t0.Add(90*time.Millisecond), rec.last())

	// the stale 100ms schedule never fires
	step(t, mock, s, 10*time.Millisecond, t0.Add(140*time.Millisecond))
	assert.Equal(t, 1, rec.count())
	s.Cancel()
}

func TestFireOvertakenByReconfigureIsNotCurrent(t *testing.T) {
	mock := clock.NewMock()
	entered := make(chan time.Time, 1)
	release := make(chan struct{})
	current := make(chan bool, 1)
	const period = 100 * time.Millisecond

	var s *Scheduler
	s = New(mock, func(expiry time.Time) {
		entered <- expiry
		<-release
		current <- s.Current(expiry)
	})
	t0 := mock.Now()
	require.NoError(t, s.Arm(period))
	mock.Add(period)
	expiry := <-entered
	assert.Equal(t, t0.Add(period), expiry)
	assert.True(t, s.Current(expiry))

	require.NoError(t, s.Reconfigure(50*time.Millisecond))
	close(release)
	assert.False(t, <-current)
	assert.Equal(t, t0.Add(150*time.Millisecond), s.Due())

	s.Cancel()
	assert.False(t, s.Current(t0.Add(150*time.Millisecond)))
}

func TestCancelWaitsForInflightFire(t *testing.T) {
	mock := clock.NewMock()
	rec := &recorder{hold: make(chan struct{}), entered: make(chan struct{}, 1)}
	s := New(mock, rec.fire)
	const period = 10 * time.Millisecond

	require.NoError(t, s.Arm(period))
	mock.Add(period)
	<-rec.entered

	cancelled := make(chan struct{})
	go func() {
		s.Cancel()
		close(cancelled)
	}()

	select {
	case <-cancelled:
		t.Fatal("Cancel returned while a fire was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(rec.hold)
	<-cancelled

	assert.Equal(t, Cancelled, s.State())
	assert.True(t, s.Due().IsZero())

	mock.Add(10 * period)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, rec.count())

	s.Cancel() // idempotent
}

func TestStateErrors(t *testing.T) {
	s := New(clock.NewMock(), func(time.Time) {})

	assert.ErrorIs(t, s.Arm(0), ErrInvalidPeriod)
	assert.ErrorIs(t, s.Reconfigure(time.Second), ErrNotArmed)
	assert.Equal(t, Idle, s.State())

	require.NoError(t, s.Arm(time.Second))
	assert.ErrorIs(t, s.Arm(time.Second), ErrNotIdle)
	assert.ErrorIs(t, s.Reconfigure(-time.Second), ErrInvalidPeriod)

	s.Cancel()
	assert.ErrorIs(t, s.Arm(time.Second), ErrNotIdle)
	assert.ErrorIs(t, s.Reconfigure(time.Second), ErrNotArmed)
	assert.Equal(t, "cancelled", s.State().String())
}

func TestRealClock(t *testing.T) {
	rec := &recorder{}
	s := New(nil, rec.fire)
	require.NoError(t, s.Arm(10*time.Millisecond))
	require.Eventually(t, func() bool { return rec.count() >= 3 }, time.Second, time.Millisecond)
	s.Cancel()

	n := rec.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, rec.count())
}
