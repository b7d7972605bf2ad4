package capture

import (
	"context"
	"image"
	"image/color"
	"io"
	"sync"
	"time"
)

// Fake is an in-memory camera driver producing synthetic frames.
// It is used by tests and by the command's demo mode when no camera is present.
type Fake struct {
	// Width and Height of produced frames. Zero uses the requested constraints.
	Width, Height int
	// Interval between frames after the first. Zero means 30 frames per second.
	Interval time.Duration
	// Err, if set, is returned by Open.
	Err error
	// Gate, if non-nil, makes Open block until a value is received, simulating
	// a pending permission prompt. Open also returns on context cancellation
	// unless IgnoreCancel is set, which simulates a grant racing a stop.
	Gate         chan struct{}
	IgnoreCancel bool
	// Color returns the fill of frame n. Defaults to a facing dependent color.
	Color func(n int, f Facing) color.RGBA

	mu     sync.Mutex
	opened int
	live   int
}

var _ Driver = (*Fake)(nil)

// Open implements [Driver].
func (d *Fake) Open(ctx context.Context, c Constraints) (Stream, error) {
	if d.Gate != nil {
		if d.IgnoreCancel {
			<-d.Gate
		} else {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-d.Gate:
			}
		}
	}
	if d.Err != nil {
		return nil, d.Err
	}
	w, h := d.Width, d.Height
	if w <= 0 || h <= 0 {
		w, h = c.Width, c.Height
	}
	d.mu.Lock()
	d.opened++
	d.live++
	d.mu.Unlock()
	return &fakeStream{drv: d, facing: c.Facing, w: w, h: h, done: make(chan struct{})}, nil
}

// Live returns the number of streams opened and not yet closed.
func (d *Fake) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// Opened returns the number of streams ever opened.
func (d *Fake) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

func (d *Fake) color(n int, f Facing) color.RGBA {
	if d.Color != nil {
		return d.Color(n, f)
	}
	if f == FacingBack {
		return color.RGBA{R: 20, G: 40, B: 200, A: 255}
	}
	return color.RGBA{R: 200, G: 40, B: 20, A: 255}
}

type fakeStream struct {
	drv    *Fake
	facing Facing
	w, h   int
	n      int
	once   sync.Once
	done   chan struct{}
}

func (s *fakeStream) Read() (image.Image, func(), error) {
	if s.n > 0 {
		interval := s.drv.Interval
		if interval <= 0 {
			interval = time.Second / 30
		}
		select {
		case <-s.done:
			return nil, nil, io.EOF
		case <-time.After(interval):
		}
	}
	select {
	case <-s.done:
		return nil, nil, io.EOF
	default:
	}
	c := s.drv.color(s.n, s.facing)
	s.n++
	img := image.NewRGBA(image.Rect(0, 0, s.w, s.h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img, nil, nil
}

func (s *fakeStream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.drv.mu.Lock()
		s.drv.live--
		s.drv.mu.Unlock()
	})
	return nil
}
