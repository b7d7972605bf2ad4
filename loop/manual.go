package loop

import "time"

// Manual is a deterministic [Scheduler] for tests. Nothing runs until
// Drain or Tick is called, and everything runs on the calling goroutine.
// Post may be called from any goroutine.
type Manual struct {
	posted chan func()
	frames frameQueue
	now    time.Time
	// Interval advances the clock passed to frame callbacks on each Tick.
	Interval time.Duration
	ticks    int
}

var _ Scheduler = (*Manual)(nil)

// NewManual returns a Manual scheduler ticking at 60Hz simulated time.
func NewManual() *Manual {
	return &Manual{
		posted:   make(chan func(), 256),
		now:      time.Unix(0, 0),
		Interval: time.Second / DefaultRefreshRate,
	}
}

// Post implements [Scheduler].
func (m *Manual) Post(fn func()) { m.posted <- fn }

// RequestFrame implements [Scheduler].
func (m *Manual) RequestFrame(fn func(time.Time)) FrameID { return m.frames.add(fn) }

// CancelFrame implements [Scheduler].
func (m *Manual) CancelFrame(id FrameID) { m.frames.cancel(id) }

// Pending returns the number of frame requests waiting for the next tick.
func (m *Manual) Pending() int { return len(m.frames.pending) }

// Ticks returns the number of ticks run.
func (m *Manual) Ticks() int { return m.ticks }

// Drain runs queued posted functions until none remain, returning how many ran.
func (m *Manual) Drain() int {
	n := 0
	for {
		select {
		case fn := <-m.posted:
			fn()
			n++
		default:
			return n
		}
	}
}

// Await blocks until a posted function arrives or timeout elapses, then drains.
// It reports whether anything ran. Use it to wait for work posted by other goroutines.
func (m *Manual) Await(timeout time.Duration) bool {
	select {
	case fn := <-m.posted:
		fn()
		m.Drain()
		return true
	case <-time.After(timeout):
		return false
	}
}

// Tick drains posted functions then runs the frame requests due on this tick.
// It returns the number of frame callbacks run.
func (m *Manual) Tick() int {
	m.Drain()
	m.ticks++
	m.now = m.now.Add(m.Interval)
	due := m.frames.take()
	ran := 0
	for _, r := range due {
		if m.frames.claim(r.id) {
			r.fn(m.now)
			ran++
		}
	}
	return ran
}
