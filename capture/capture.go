// Package capture acquires and releases camera streams.
//
// A [Manager] holds at most one live [Session]. Acquisition is asynchronous
// and may block indefinitely while the user grants permission; completions
// are delivered on the owner's event loop through a [Poster], so all Manager
// methods must be called from that loop. A successful acquisition that
// arrives after Stop (or after a newer Start) is released immediately.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"
	"syscall"
)

// Facing selects which camera to use on devices with more than one.
type Facing uint8

const (
	FacingFront Facing = iota // user facing
	FacingBack                // environment facing
)

func (f Facing) String() string {
	switch f {
	case FacingFront:
		return "front"
	case FacingBack:
		return "back"
	}
	return "unknown"
}

// Opposite returns the other facing.
func (f Facing) Opposite() Facing {
	if f == FacingFront {
		return FacingBack
	}
	return FacingFront
}

// ParseFacing parses "front"/"user" or "back"/"environment".
func ParseFacing(s string) (Facing, error) {
	switch strings.ToLower(s) {
	case "front", "user", "":
		return FacingFront, nil
	case "back", "rear", "environment":
		return FacingBack, nil
	}
	return FacingFront, fmt.Errorf("unknown camera facing %q", s)
}

// Preferred stream resolution. Devices negotiate the closest supported mode.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// Constraints describe the requested stream.
type Constraints struct {
	Facing Facing
	Width  int
	Height int
}

// Stream is a live hardware video stream.
type Stream interface {
	// Read blocks until the next frame is available. release must be called
	// once the frame is no longer used. Read returns an error once the stream is closed.
	Read() (frame image.Image, release func(), err error)
	// Close releases the hardware. Close unblocks pending Reads.
	Close() error
}

// Driver opens camera streams. Open may block until the user grants access
// and must return promptly with ctx.Err() when ctx is cancelled.
type Driver interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Poster schedules a function to run on the owner's event loop.
type Poster interface {
	Post(fn func())
}

// Driver errors are classified into these reasons. Drivers should wrap them.
var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrDeviceBusy       = errors.New("camera device busy")
	ErrNoDevice         = errors.New("no camera device")
)

// Reason classifies an [AcquisitionError].
type Reason uint8

const (
	ReasonUnknown Reason = iota
	ReasonPermissionDenied
	ReasonDeviceBusy
	ReasonNoDevice
)

func (r Reason) String() string {
	switch r {
	case ReasonPermissionDenied:
		return "permission denied"
	case ReasonDeviceBusy:
		return "device busy"
	case ReasonNoDevice:
		return "no device"
	}
	return "unknown"
}

// AcquisitionError is returned when a camera stream could not be started.
// It is fatal to the start attempt: no retry is made.
type AcquisitionError struct {
	Reason Reason
	Facing Facing
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquiring %s camera: %s: %v", e.Facing, e.Reason, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

func classify(err error) Reason {
	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, os.ErrPermission), errors.Is(err, syscall.EACCES):
		return ReasonPermissionDenied
	case errors.Is(err, ErrDeviceBusy), errors.Is(err, syscall.EBUSY):
		return ReasonDeviceBusy
	case errors.Is(err, ErrNoDevice), errors.Is(err, os.ErrNotExist), errors.Is(err, syscall.ENODEV):
		return ReasonNoDevice
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "busy"):
		return ReasonDeviceBusy
	case strings.Contains(msg, "permission"), strings.Contains(msg, "not allowed"):
		return ReasonPermissionDenied
	case strings.Contains(msg, "no device"), strings.Contains(msg, "not found"), strings.Contains(msg, "failed to find"):
		return ReasonNoDevice
	}
	return ReasonUnknown
}
