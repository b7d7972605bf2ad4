package render

import (
	"image"
	"math"

	"github.com/soypat/absorb/source"
	"github.com/soypat/geometry/ms2"
)

// FitPolicy maps a source's intrinsic aspect ratio onto a differently shaped output region.
type FitPolicy uint8

const (
	// FitStretch scales each axis independently to exactly fill the target.
	FitStretch FitPolicy = iota
	// FitCover scales preserving aspect ratio so the source covers the target,
	// centering the overflowing axis. Overflow is cropped.
	FitCover
)

func (p FitPolicy) String() string {
	switch p {
	case FitStretch:
		return "stretch"
	case FitCover:
		return "cover"
	}
	return "unknown"
}

// SurfaceClass is the aspect class of a presentation surface.
type SurfaceClass uint8

const (
	SurfaceWide   SurfaceClass = iota // desktop-class
	SurfaceNarrow                     // mobile-class
)

func (c SurfaceClass) String() string {
	if c == SurfaceNarrow {
		return "narrow"
	}
	return "wide"
}

// DefaultNarrowWidth is the widest surface, in pixels, still classed as narrow.
const DefaultNarrowWidth = 768

// ClassifyWidth classes a surface of the given width. Widths up to and
// including threshold are narrow. A non-positive threshold uses DefaultNarrowWidth.
func ClassifyWidth(width, threshold int) SurfaceClass {
	if threshold <= 0 {
		threshold = DefaultNarrowWidth
	}
	if width <= threshold {
		return SurfaceNarrow
	}
	return SurfaceWide
}

// PolicyFor selects the fit policy: live video on narrow surfaces covers,
// everything else stretches.
func PolicyFor(kind source.Kind, class SurfaceClass) FitPolicy {
	if kind == source.KindVideo && class == SurfaceNarrow {
		return FitCover
	}
	return FitStretch
}

// FitRect returns the rectangle the source should be drawn into so that it
// fits dst under policy. Under FitCover the result may extend beyond dst.
// An empty source or destination yields dst.
func FitRect(srcWidth, srcHeight int, dst image.Rectangle, policy FitPolicy) image.Rectangle {
	if policy != FitCover || srcWidth <= 0 || srcHeight <= 0 || dst.Empty() {
		return dst
	}
	srcSize := ms2.Vec{X: float32(srcWidth), Y: float32(srcHeight)}
	dstSize := ms2.Vec{X: float32(dst.Dx()), Y: float32(dst.Dy())}
	srcRatio := srcSize.X / srcSize.Y
	dstRatio := dstSize.X / dstSize.Y

	var size, off ms2.Vec
	if srcRatio > dstRatio {
		// Source wider than target: match heights, center horizontally.
		size = ms2.Vec{X: dstSize.Y * srcRatio, Y: dstSize.Y}
		off.X = (dstSize.X - size.X) / 2
	} else {
		// Source taller than target: match widths, center vertically.
		size = ms2.Vec{X: dstSize.X, Y: dstSize.X / srcRatio}
		off.Y = (dstSize.Y - size.Y) / 2
	}
	origin := image.Pt(dst.Min.X+roundf(off.X), dst.Min.Y+roundf(off.Y))
	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(roundf(size.X), roundf(size.Y)))}
}

func roundf(v float32) int {
	return int(math.Round(float64(v)))
}
