//go:build gocv

package capture

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"

	"gocv.io/x/gocv"
)

// GoCV opens cameras through OpenCV. Build with -tags gocv.
// Device index 0 is used for the front camera and 1 for the back camera
// unless overridden.
type GoCV struct {
	FrontIndex int
	BackIndex  int
}

var _ Driver = GoCV{}

// NewGoCV returns the conventional front=0, back=1 device mapping.
func NewGoCV() GoCV { return GoCV{FrontIndex: 0, BackIndex: 1} }

// Open implements [Driver]. OpenCV does not prompt so ctx is only checked before opening.
func (g GoCV) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := g.FrontIndex
	if c.Facing == FacingBack {
		idx = g.BackIndex
	}
	vc, err := gocv.OpenVideoCapture(idx)
	if err != nil {
		return nil, fmt.Errorf("gocv: opening camera %d: %w", idx, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("gocv: camera %d: %w", idx, ErrNoDevice)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	return &gocvStream{vc: vc, mat: gocv.NewMat()}, nil
}

type gocvStream struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

func (s *gocvStream) Read() (image.Image, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, io.EOF
	}
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, nil, io.EOF
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return nil, nil, fmt.Errorf("gocv: converting frame: %w", err)
	}
	return img, nil, nil
}

func (s *gocvStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.mat.Close()
	return s.vc.Close()
}
