package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/soypat/absorb"
	"github.com/soypat/absorb/source"
)

// Session is a live camera stream bound to a [source.Video] that receives its frames.
type Session struct {
	stream Stream
	facing Facing
	video  *source.Video
	once   sync.Once
	done   chan struct{}
	closed chan struct{} // closed when the reader goroutine exits
}

func newSession(st Stream, facing Facing) *Session {
	s := &Session{
		stream: st,
		facing: facing,
		video:  source.NewVideo(),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go s.read()
	return s
}

// Video returns the source fed by this session.
func (s *Session) Video() *source.Video { return s.video }

// Facing returns the camera facing the session was started with.
func (s *Session) Facing() Facing { return s.facing }

func (s *Session) read() {
	defer close(s.closed)
	log := absorb.Logger()
	for {
		frame, release, err := s.stream.Read()
		select {
		case <-s.done:
			if release != nil {
				release()
			}
			return
		default:
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn("camera stream read failed", slog.String("facing", s.facing.String()), slog.Any("err", err))
			}
			return
		}
		s.video.Push(frame, release)
	}
}

// Close releases the hardware stream and the held frame. Close is idempotent.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.stream.Close()
		<-s.closed
		s.video.Close()
	})
	return err
}

// Manager owns at most one [Session]. It is not safe for concurrent use:
// call its methods from the event loop its [Poster] posts to.
type Manager struct {
	driver Driver
	post   Poster
	width  int
	height int

	facing  Facing
	session *Session
	pending context.CancelFunc // outstanding acquisition
	gen     uint64

	// OnStart is called on the event loop when a session becomes live.
	OnStart func(*Session)
	// OnError is called on the event loop with an *AcquisitionError when starting fails.
	OnError func(error)
}

// NewManager returns a Manager acquiring streams from driver and delivering
// completions through post. A zero width or height selects the defaults.
func NewManager(driver Driver, post Poster, width, height int) *Manager {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Manager{driver: driver, post: post, width: width, height: height}
}

// Facing returns the facing of the active or most recently requested session.
func (m *Manager) Facing() Facing { return m.facing }

// SetFacing sets the facing used by the next Start issued through ToggleFacing
// or by callers reading Facing. It does not affect a live session.
func (m *Manager) SetFacing(f Facing) {
	if !m.Active() {
		m.facing = f
	}
}

// Session returns the live session or nil.
func (m *Manager) Session() *Session { return m.session }

// Pending reports whether an acquisition is outstanding.
func (m *Manager) Pending() bool { return m.pending != nil }

// Active reports whether a session is live or being acquired.
func (m *Manager) Active() bool { return m.session != nil || m.pending != nil }

// Start releases any existing session and requests a new stream with the given facing.
// The result is reported through OnStart or OnError.
func (m *Manager) Start(facing Facing) {
	m.Stop()
	m.facing = facing
	gen := m.gen
	ctx, cancel := context.WithCancel(context.Background())
	m.pending = cancel
	c := Constraints{Facing: facing, Width: m.width, Height: m.height}
	absorb.Logger().Info("requesting camera", slog.String("facing", facing.String()), slog.Int("width", c.Width), slog.Int("height", c.Height))
	go func() {
		st, err := m.driver.Open(ctx, c)
		m.post.Post(func() { m.complete(gen, st, err) })
	}()
}

func (m *Manager) complete(gen uint64, st Stream, err error) {
	log := absorb.Logger()
	if gen != m.gen {
		// Stopped or restarted while acquiring.
		if st != nil {
			log.Info("releasing camera stream acquired after stop")
			st.Close()
		}
		return
	}
	m.pending()
	m.pending = nil
	if err == nil && st == nil {
		err = ErrNoDevice
	}
	if err != nil {
		aerr := &AcquisitionError{Reason: classify(err), Facing: m.facing, Err: err}
		log.Error("camera acquisition failed", slog.Any("err", aerr))
		if m.OnError != nil {
			m.OnError(aerr)
		}
		return
	}
	m.session = newSession(st, m.facing)
	log.Info("camera started", slog.String("facing", m.facing.String()))
	if m.OnStart != nil {
		m.OnStart(m.session)
	}
}

// Stop releases the live session and abandons any outstanding acquisition.
// Calling Stop with nothing active is a no-op.
func (m *Manager) Stop() {
	m.gen++
	if m.pending != nil {
		m.pending()
		m.pending = nil
	}
	if m.session != nil {
		if err := m.session.Close(); err != nil {
			absorb.Logger().Warn("closing camera stream", slog.Any("err", err))
		}
		m.session = nil
		absorb.Logger().Info("camera stopped")
	}
}

// ToggleFacing restarts an active session with the opposite facing.
// It returns false and does nothing if no session is live or pending.
func (m *Manager) ToggleFacing() bool {
	if !m.Active() {
		return false
	}
	m.Start(m.facing.Opposite())
	return true
}
