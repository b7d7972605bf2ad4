package capture

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/pion/mediadevices"
	"github.com/soypat/absorb/loop"
)

func waitFor(t *testing.T, sched *loop.Manual, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		sched.Await(10 * time.Millisecond)
	}
}

func TestManagerStartStop(t *testing.T) {
	sched := loop.NewManual()
	drv := &Fake{Interval: time.Millisecond}
	m := NewManager(drv, sched, 0, 0)
	var started []*Session
	m.OnStart = func(s *Session) { started = append(started, s) }
	m.OnError = func(err error) { t.Errorf("unexpected error %v", err) }

	m.Start(FacingBack)
	if !m.Active() || !m.Pending() {
		t.Fatal("acquisition should be pending")
	}
	waitFor(t, sched, "start", func() bool { return m.Session() != nil })
	if len(started) != 1 || started[0].Facing() != FacingBack {
		t.Fatalf("unexpected starts %v", started)
	}
	v := started[0].Video()
	waitFor(t, sched, "frames", func() bool { return v.Frames() > 2 })
	if w, h := v.Size(); w != DefaultWidth || h != DefaultHeight {
		t.Fatalf("want default resolution, got %dx%d", w, h)
	}
	m.Stop()
	m.Stop()
	if m.Active() || drv.Live() != 0 {
		t.Fatalf("stop left active=%v live=%d", m.Active(), drv.Live())
	}
	if v.Ready() {
		t.Fatal("video still holds a frame after stop")
	}
}

func TestManagerRestartReleasesPrevious(t *testing.T) {
	sched := loop.NewManual()
	drv := &Fake{}
	m := NewManager(drv, sched, 64, 48)
	for range 3 {
		m.Start(FacingFront)
	}
	waitFor(t, sched, "acquisitions", func() bool {
		return drv.Opened() == 3 && drv.Live() == 1 && m.Session() != nil
	})
	m.Stop()
	if drv.Live() != 0 {
		t.Fatal("stream leaked")
	}
}

func TestManagerCancelPending(t *testing.T) {
	sched := loop.NewManual()
	drv := &Fake{Gate: make(chan struct{})}
	m := NewManager(drv, sched, 0, 0)
	m.OnStart = func(*Session) { t.Error("cancelled acquisition started") }
	var errs []error
	m.OnError = func(err error) { errs = append(errs, err) }
	m.Start(FacingFront)
	m.Stop()
	// Cancelled acquisition completes with ctx error and is discarded as stale.
	sched.Await(time.Second)
	if len(errs) != 0 || drv.Opened() != 0 || m.Active() {
		t.Fatalf("errs=%v opened=%d active=%v", errs, drv.Opened(), m.Active())
	}
}

func TestManagerLateGrant(t *testing.T) {
	sched := loop.NewManual()
	drv := &Fake{Gate: make(chan struct{}), IgnoreCancel: true}
	m := NewManager(drv, sched, 0, 0)
	m.OnStart = func(*Session) { t.Error("late stream installed") }
	m.Start(FacingFront)
	m.Stop()
	close(drv.Gate)
	waitFor(t, sched, "late grant", func() bool { return drv.Opened() == 1 && drv.Live() == 0 })
}

func TestManagerToggleFacing(t *testing.T) {
	sched := loop.NewManual()
	drv := &Fake{}
	m := NewManager(drv, sched, 0, 0)
	if m.ToggleFacing() {
		t.Fatal("toggle with no session must be a no-op")
	}
	if drv.Opened() != 0 || m.Facing() != FacingFront {
		t.Fatal("inactive toggle changed state")
	}
	m.SetFacing(FacingBack)
	m.Start(m.Facing())
	waitFor(t, sched, "start", func() bool { return m.Session() != nil })
	if !m.ToggleFacing() {
		t.Fatal("toggle failed")
	}
	waitFor(t, sched, "restart", func() bool { return m.Session() != nil })
	if m.Facing() != FacingFront || m.Session().Facing() != FacingFront {
		t.Fatalf("want front, got %v", m.Facing())
	}
	m.Stop()
	if drv.Live() != 0 {
		t.Fatal("stream leaked")
	}
}

func TestManagerError(t *testing.T) {
	sched := loop.NewManual()
	drv := &Fake{Err: fmt.Errorf("open /dev/video0: %w", syscall.EBUSY)}
	m := NewManager(drv, sched, 0, 0)
	var got error
	m.OnError = func(err error) { got = err }
	m.Start(FacingFront)
	waitFor(t, sched, "error", func() bool { return got != nil })
	var aerr *AcquisitionError
	if !errors.As(got, &aerr) {
		t.Fatalf("want AcquisitionError, got %T", got)
	}
	if aerr.Reason != ReasonDeviceBusy || aerr.Facing != FacingFront {
		t.Fatalf("unexpected %+v", aerr)
	}
	if !errors.Is(got, syscall.EBUSY) {
		t.Fatal("cause not wrapped")
	}
	if m.Active() {
		t.Fatal("failed acquisition left manager active")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Reason
	}{
		{ErrPermissionDenied, ReasonPermissionDenied},
		{fmt.Errorf("wrap: %w", syscall.EACCES), ReasonPermissionDenied},
		{errors.New("NotAllowedError: Permission denied"), ReasonPermissionDenied},
		{ErrDeviceBusy, ReasonDeviceBusy},
		{errors.New("device or resource busy"), ReasonDeviceBusy},
		{ErrNoDevice, ReasonNoDevice},
		{errors.New("failed to find the best driver that fits the constraints"), ReasonNoDevice},
		{context.Canceled, ReasonUnknown},
	}
	for _, tt := range tests {
		if got := classify(tt.err); got != tt.want {
			t.Errorf("classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestParseFacing(t *testing.T) {
	for in, want := range map[string]Facing{"front": FacingFront, "USER": FacingFront, "": FacingFront, "back": FacingBack, "environment": FacingBack} {
		got, err := ParseFacing(in)
		if err != nil || got != want {
			t.Errorf("ParseFacing(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFacing("sideways"); err == nil {
		t.Error("expected error")
	}
}

func TestPickDevice(t *testing.T) {
	devs := []mediadevices.MediaDeviceInfo{
		{DeviceID: "mic", Kind: mediadevices.AudioInput, Label: "Front microphone"},
		{DeviceID: "usb", Kind: mediadevices.VideoInput, Label: "USB2.0 HD UVC WebCam"},
		{DeviceID: "cam-rear", Kind: mediadevices.VideoInput, Label: "Rear Camera"},
		{DeviceID: "cam-ir", Kind: mediadevices.VideoInput, Label: "IR sensor"},
	}
	if id, err := pickDevice(devs, FacingBack); err != nil || id != "cam-rear" {
		t.Fatalf("back: %q %v", id, err)
	}
	// No front label: first camera.
	if id, err := pickDevice(devs, FacingFront); err != nil || id != "usb" {
		t.Fatalf("front: %q %v", id, err)
	}
	if _, err := pickDevice(devs[:1], FacingFront); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("want ErrNoDevice, got %v", err)
	}
}
