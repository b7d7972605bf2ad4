//go:build linux && v4l2

package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"sync"

	"github.com/soypat/absorb"
	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
)

// V4L2 opens Video4Linux devices through go4vl, requesting MJPEG frames.
// Build with -tags v4l2.
type V4L2 struct {
	FrontPath string
	BackPath  string
	FPS       int
}

var _ Driver = V4L2{}

// NewV4L2 returns the usual laptop mapping: /dev/video0 front, /dev/video2 back.
// Odd nodes are typically metadata interfaces of the same camera.
func NewV4L2() V4L2 {
	return V4L2{FrontPath: "/dev/video0", BackPath: "/dev/video2", FPS: 30}
}

// Open implements [Driver].
func (d V4L2) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := d.FrontPath
	if c.Facing == FacingBack {
		path = d.BackPath
	}
	fps := d.FPS
	if fps <= 0 {
		fps = 30
	}
	dev, err := device.Open(path,
		device.WithIOType(v4l2.IOTypeMMAP),
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: v4l2.PixelFmtMJPEG,
			Width:       uint32(c.Width),
			Height:      uint32(c.Height),
			Field:       v4l2.FieldNone,
		}),
		device.WithFPS(uint32(fps)),
	)
	if err != nil {
		return nil, fmt.Errorf("v4l2: opening %s: %w", path, err)
	}
	// The stream outlives the acquisition context.
	streamCtx, cancel := context.WithCancel(context.Background())
	if err := dev.Start(streamCtx); err != nil {
		cancel()
		dev.Close()
		return nil, fmt.Errorf("v4l2: starting %s: %w", path, err)
	}
	return &v4l2Stream{dev: dev, cancel: cancel, out: dev.GetOutput(), path: path}, nil
}

type v4l2Stream struct {
	dev    *device.Device
	cancel context.CancelFunc
	out    <-chan []byte
	path   string
	once   sync.Once
}

func (s *v4l2Stream) Read() (image.Image, func(), error) {
	for frame := range s.out {
		img, err := jpeg.Decode(bytes.NewReader(frame))
		if err != nil {
			absorb.Logger().Debug("v4l2 dropping bad frame", slog.String("device", s.path), slog.Any("err", err))
			continue
		}
		return img, nil, nil
	}
	return nil, nil, io.EOF
}

func (s *v4l2Stream) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.dev.Close()
	})
	return err
}
