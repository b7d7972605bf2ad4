// Package loop provides a cooperative single goroutine event loop with a
// display refresh tick. Posted functions and frame callbacks never overlap:
// each runs to completion before the next starts. A cancelled frame request
// is guaranteed not to run.
package loop

import (
	"context"
	"sync"
	"time"
)

// FrameID identifies a pending frame request. The zero FrameID is never issued.
type FrameID uint64

// Scheduler is the next-tick primitive used by the presentation loop.
type Scheduler interface {
	// Post queues fn to run on the loop.
	Post(fn func())
	// RequestFrame schedules fn to run once on the next refresh tick.
	RequestFrame(fn func(now time.Time)) FrameID
	// CancelFrame removes a pending frame request. Cancelling a request that
	// already ran or was cancelled is a no-op.
	CancelFrame(id FrameID)
}

// DefaultRefreshRate is the tick frequency used when none is configured.
const DefaultRefreshRate = 60

// frameQueue holds pending frame requests in request order.
type frameQueue struct {
	next    FrameID
	pending []frameReq
	// due holds ids taken for the current tick that have not run yet,
	// so a callback may cancel a sibling due on the same tick.
	due map[FrameID]bool
}

type frameReq struct {
	id FrameID
	fn func(time.Time)
}

func (q *frameQueue) add(fn func(time.Time)) FrameID {
	q.next++
	q.pending = append(q.pending, frameReq{id: q.next, fn: fn})
	return q.next
}

func (q *frameQueue) cancel(id FrameID) {
	delete(q.due, id)
	for i, r := range q.pending {
		if r.id == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// take removes and returns the requests due on this tick.
// Requests made while running them wait for the following tick.
func (q *frameQueue) take() []frameReq {
	due := q.pending
	q.pending = nil
	if len(due) > 0 {
		q.due = make(map[FrameID]bool, len(due))
		for _, r := range due {
			q.due[r.id] = true
		}
	}
	return due
}

// claim reports whether a taken request was not cancelled since take, marking it as run.
func (q *frameQueue) claim(id FrameID) bool {
	live := q.due[id]
	delete(q.due, id)
	return live
}

// Loop is a goroutine-backed [Scheduler]. All methods are safe for concurrent use;
// callbacks run on the goroutine executing Run.
type Loop struct {
	interval time.Duration
	posted   chan func()
	done     chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	frames frameQueue
}

var _ Scheduler = (*Loop)(nil)

// New returns a loop ticking refreshRate times per second.
// A non-positive rate uses DefaultRefreshRate.
func New(refreshRate int) *Loop {
	if refreshRate <= 0 {
		refreshRate = DefaultRefreshRate
	}
	return &Loop{
		interval: time.Second / time.Duration(refreshRate),
		posted:   make(chan func(), 64),
		done:     make(chan struct{}),
	}
}

// Interval returns the tick period.
func (l *Loop) Interval() time.Duration { return l.interval }

// Post implements [Scheduler]. Post may block while the queue is full.
// Functions posted after Run returned are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case l.posted <- fn:
	case <-l.done:
	}
}

// RequestFrame implements [Scheduler].
func (l *Loop) RequestFrame(fn func(time.Time)) FrameID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames.add(fn)
}

// CancelFrame implements [Scheduler].
func (l *Loop) CancelFrame(id FrameID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames.cancel(id)
}

// Run processes posted functions and refresh ticks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	defer l.stopOnce.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.posted:
			fn()
		case now := <-ticker.C:
			l.tick(now)
		}
	}
}

func (l *Loop) tick(now time.Time) {
	l.mu.Lock()
	due := l.frames.take()
	l.mu.Unlock()
	for _, r := range due {
		l.mu.Lock()
		live := l.frames.claim(r.id)
		l.mu.Unlock()
		if live {
			r.fn(now)
		}
	}
}
