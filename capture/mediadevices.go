package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/soypat/absorb"
)

// MediaDevices opens cameras through github.com/pion/mediadevices.
// A camera driver must be registered by importing it for side effects, i.e:
//
//	import _ "github.com/pion/mediadevices/pkg/driver/camera"
type MediaDevices struct {
	// FrameFormat optionally forces the pixel format, i.e: frame.FormatYUYV.
	FrameFormat string
}

var _ Driver = MediaDevices{}

var (
	frontHints = []string{"front", "user", "facetime", "integrated", "built-in", "internal"}
	backHints  = []string{"back", "rear", "environment", "world"}
)

// pickDevice chooses the video input whose label best matches facing.
// Without a label match front uses the first camera and back the last.
func pickDevice(devices []mediadevices.MediaDeviceInfo, facing Facing) (string, error) {
	var cams []mediadevices.MediaDeviceInfo
	for _, d := range devices {
		if d.Kind == mediadevices.VideoInput {
			cams = append(cams, d)
		}
	}
	if len(cams) == 0 {
		return "", ErrNoDevice
	}
	hints := frontHints
	if facing == FacingBack {
		hints = backHints
	}
	for _, c := range cams {
		label := strings.ToLower(c.Label)
		for _, h := range hints {
			if strings.Contains(label, h) {
				return c.DeviceID, nil
			}
		}
	}
	if facing == FacingBack {
		return cams[len(cams)-1].DeviceID, nil
	}
	return cams[0].DeviceID, nil
}

// Open implements [Driver].
func (md MediaDevices) Open(ctx context.Context, c Constraints) (Stream, error) {
	deviceID, err := pickDevice(mediadevices.EnumerateDevices(), c.Facing)
	if err != nil {
		return nil, err
	}
	absorb.Logger().Debug("mediadevices camera selected", slog.String("device", deviceID), slog.String("facing", c.Facing.String()))

	type result struct {
		stream mediadevices.MediaStream
		err    error
	}
	done := make(chan result, 1)
	go func() {
		s, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
			Video: func(mc *mediadevices.MediaTrackConstraints) {
				mc.DeviceID = prop.String(deviceID)
				mc.Width = prop.Int(c.Width)
				mc.Height = prop.Int(c.Height)
				if md.FrameFormat != "" {
					mc.FrameFormat = prop.FrameFormat(md.FrameFormat)
				}
			},
		})
		done <- result{stream: s, err: err}
	}()

	var r result
	select {
	case <-ctx.Done():
		// Release whatever the driver hands over later.
		go func() {
			if r := <-done; r.err == nil {
				closeTracks(r.stream)
			}
		}()
		return nil, ctx.Err()
	case r = <-done:
	}
	if r.err != nil {
		return nil, fmt.Errorf("mediadevices: %w", r.err)
	}
	tracks := r.stream.GetVideoTracks()
	if len(tracks) == 0 {
		closeTracks(r.stream)
		return nil, fmt.Errorf("mediadevices: %w: stream has no video tracks", ErrNoDevice)
	}
	vt, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		closeTracks(r.stream)
		return nil, errors.New("mediadevices: unexpected video track type")
	}
	return &mdStream{stream: r.stream, reader: vt.NewReader(false)}, nil
}

func closeTracks(s mediadevices.MediaStream) {
	for _, t := range s.GetTracks() {
		t.Close()
	}
}

type mdStream struct {
	stream mediadevices.MediaStream
	reader video.Reader
}

func (s *mdStream) Read() (image.Image, func(), error) {
	return s.reader.Read()
}

func (s *mdStream) Close() error {
	var errs []error
	for _, t := range s.stream.GetTracks() {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}
