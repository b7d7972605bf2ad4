// Package source implements the visual inputs of the viewer: a live video
// feed fed by a capture session and a decoded static image. Both expose a
// uniform readiness and drawing interface so the render engine can treat
// them alike.
package source

import (
	"errors"
	"image"

	"golang.org/x/image/draw"
)

// Kind tags the active source variant.
type Kind uint8

const (
	KindNone Kind = iota
	KindVideo
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindVideo:
		return "video"
	case KindImage:
		return "image"
	}
	return "unknown"
}

var (
	// ErrNotReady is returned by Draw when the source has no decodable pixel data yet.
	// It is not a failure: callers should poll again on the next tick.
	ErrNotReady = errors.New("source not ready")
	// ErrTainted is returned when pixels drawn from a restricted source are read back.
	ErrTainted = errors.New("source is cross-origin restricted")
	// ErrDecode wraps failures to decode an image.
	ErrDecode = errors.New("image decode failed")
)

// Source is the active visual input.
type Source interface {
	// Kind returns the source variant, never KindNone.
	Kind() Kind
	// Ready reports whether the source has decodable pixel data.
	Ready() bool
	// Size returns the intrinsic size of the source in pixels.
	// It returns zeros while the source is not ready.
	Size() (width, height int)
	// Draw scales the current visual content into r of dst.
	// Pixels of dst outside r are left untouched.
	// Draw returns ErrNotReady if the source has no content yet.
	Draw(dst draw.Image, r image.Rectangle) error
}

// Restricter is implemented by sources whose pixels may be drawn but not read back,
// i.e: images fetched from a foreign origin.
type Restricter interface {
	Restricted() bool
}

// IsRestricted reports whether reading pixels drawn from src must fail with ErrTainted.
func IsRestricted(src Source) bool {
	r, ok := src.(Restricter)
	return ok && r.Restricted()
}

// DefaultScaler is the interpolator used by sources that do not set one.
var DefaultScaler draw.Scaler = draw.ApproxBiLinear

func scale(s draw.Scaler, dst draw.Image, r image.Rectangle, src image.Image) {
	if s == nil {
		s = DefaultScaler
	}
	sr := src.Bounds()
	if r.Dx() == sr.Dx() && r.Dy() == sr.Dy() {
		// Identity scale, copy exact samples.
		draw.Draw(dst, r, src, sr.Min, draw.Src)
		return
	}
	s.Scale(dst, r, src, sr, draw.Src, nil)
}
