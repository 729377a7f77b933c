// Package notify implements the wake-up protocol between the sample
// producer and blocked consumers.
//
// A Hub shares the lock that guards the data it reports on. Data waiters
// sleep on a condition variable and are woken one per produced sample;
// readiness waiters sleep on a broadcast channel and are all woken on every
// sample. Every wait re-checks its condition after waking.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

var (
	// ErrWouldBlock is returned by a non-blocking wait when no data is ready.
	ErrWouldBlock = errors.New("operation would block")
	// ErrInterrupted is returned when a wait is cancelled or the hub closes.
	ErrInterrupted = errors.New("wait interrupted")
)

// Mask is a set of readiness conditions.
type Mask uint8

const (
	// Readable is set while at least one sample is buffered.
	Readable Mask = 1 << 0
	// Urgent is set while the newest sample crossed the threshold and is unread.
	Urgent Mask = 1 << 1
)

func (m Mask) String() string {
	switch m {
	case 0:
		return "none"
	case Readable:
		return "readable"
	case Urgent:
		return "urgent"
	case Readable | Urgent:
		return "readable|urgent"
	}
	return "mask(?)"
}

// Hub coordinates waiters. Methods documented as "l held" must be called
// with the Locker passed to New held; they may release and reacquire it
// while waiting.
type Hub struct {
	l     sync.Locker
	clock clock.Clock

	data *sync.Cond // data waiters, notify-one
	idle *sync.Cond // signalled when the last waiter leaves

	readyMu sync.Mutex
	ready   chan struct{} // closed and replaced on every Notify

	closed  bool // l
	waiters int  // l
}

// New creates a hub guarded by l.
func New(l sync.Locker, clk clock.Clock) *Hub {
	if clk == nil {
		clk = clock.New()
	}
	return &Hub{
		l:     l,
		clock: clk,
		data:  sync.NewCond(l),
		idle:  sync.NewCond(l),
		ready: make(chan struct{}),
	}
}

// WaitData waits until ready reports true (l held). ready is evaluated with
// l held. With nonBlocking set it fails fast with ErrWouldBlock. It returns
// ErrInterrupted when ctx is done or the hub is closed, before consuming
// anything.
func (h *Hub) WaitData(ctx context.Context, nonBlocking bool, ready func() bool) error {
	if h.closed {
		return ErrInterrupted
	}
	if ready() {
		return nil
	}
	if nonBlocking {
		return ErrWouldBlock
	}

	stop := context.AfterFunc(ctx, func() {
		h.l.Lock()
		h.data.Broadcast()
		h.l.Unlock()
	})
	defer stop()

	h.enter()
	defer h.leave()

	for {
		if h.closed || ctx.Err() != nil {
			return ErrInterrupted
		}
		h.data.Wait()
		if h.closed {
			return ErrInterrupted
		}
		if ready() {
			return nil
		}
	}
}

// WaitReady returns the current readiness (l held). When mask reports
// nothing it waits for the next Notify and re-evaluates. A negative timeout
// waits indefinitely and a zero timeout polls once; on timeout the mask is
// 0 and the error nil.
func (h *Hub) WaitReady(ctx context.Context, timeout time.Duration, mask func() Mask) (Mask, error) {
	if h.closed {
		return 0, ErrInterrupted
	}
	if m := mask(); m != 0 || timeout == 0 {
		return m, nil
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := h.clock.Timer(timeout)
		defer t.Stop()
		expired = t.C
	}

	h.enter()
	defer h.leave()

	for {
		ch := h.readyChan()

		h.l.Unlock()
		var err error
		timedOut := false
		select {
		case <-ch:
		case <-ctx.Done():
			err = ErrInterrupted
		case <-expired:
			timedOut = true
		}
		h.l.Lock()

		switch {
		case h.closed:
			return 0, ErrInterrupted
		case err != nil:
			return 0, err
		}
		if m := mask(); m != 0 || timedOut {
			return m, nil
		}
	}
}

// Notify wakes one data waiter and every readiness waiter. It must be
// called without l held and never blocks.
func (h *Hub) Notify() {
	h.data.Signal()

	h.readyMu.Lock()
	close(h.ready)
	h.ready = make(chan struct{})
	h.readyMu.Unlock()
}

// Close marks the hub closed and wakes every waiter (l held). Waiters
// return ErrInterrupted. Close is idempotent.
func (h *Hub) Close() {
	if h.closed {
		return
	}
	h.closed = true
	h.data.Broadcast()

	h.readyMu.Lock()
	close(h.ready)
	h.ready = make(chan struct{})
	h.readyMu.Unlock()
}

// Drain blocks until every waiter has returned (l held).
func (h *Hub) Drain() {
	for h.waiters > 0 {
		h.idle.Wait()
	}
}

// Waiters returns the number of blocked waiters (l held).
func (h *Hub) Waiters() int { return h.waiters }

func (h *Hub) readyChan() chan struct{} {
	h.readyMu.Lock()
	defer h.readyMu.Unlock()
	return h.ready
}

func (h *Hub) enter() { h.waiters++ }

func (h *Hub) leave() {
	h.waiters--
	if h.waiters == 0 {
		h.idle.Broadcast()
	}
}
