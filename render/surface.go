package render

import (
	"image"
	"sync"
)

// Surface is the presentation target of the transform engine.
type Surface interface {
	// Bounds returns the current display area in pixels. It may change between
	// frames, i.e: when the containing window is resized.
	Bounds() image.Rectangle
	// Present replaces the displayed picture with img.
	// img is reused by the engine so Present must not retain it after returning.
	Present(img *image.RGBA) error
}

// MemorySurface is an in-memory [Surface] keeping a copy of the last presented frame.
// It is safe for concurrent use.
type MemorySurface struct {
	mu       sync.Mutex
	size     image.Rectangle
	last     *image.RGBA
	presents int
	// Err, if set, is returned by Present without storing the frame.
	Err error
}

var _ Surface = (*MemorySurface)(nil)

// NewMemorySurface returns a surface of the given size.
func NewMemorySurface(width, height int) *MemorySurface {
	return &MemorySurface{size: image.Rect(0, 0, width, height)}
}

// Resize changes the display area.
func (ms *MemorySurface) Resize(width, height int) {
	ms.mu.Lock()
	ms.size = image.Rect(0, 0, width, height)
	ms.mu.Unlock()
}

// Bounds implements [Surface].
func (ms *MemorySurface) Bounds() image.Rectangle {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.size
}

// Present implements [Surface].
func (ms *MemorySurface) Present(img *image.RGBA) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.Err != nil {
		return ms.Err
	}
	ms.last = copyRGBA(ms.last, img)
	ms.presents++
	return nil
}

// Last returns a copy of the last presented frame, or nil.
func (ms *MemorySurface) Last() *image.RGBA {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.last == nil {
		return nil
	}
	return copyRGBA(nil, ms.last)
}

// Presents returns the number of frames presented.
func (ms *MemorySurface) Presents() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.presents
}

// copyRGBA copies src into dst, reallocating dst when sizes differ.
func copyRGBA(dst, src *image.RGBA) *image.RGBA {
	r := image.Rect(0, 0, src.Rect.Dx(), src.Rect.Dy())
	if dst == nil || dst.Rect != r {
		dst = image.NewRGBA(r)
	}
	rowBytes := r.Dx() * 4
	for y := 0; y < r.Dy(); y++ {
		so := src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+rowBytes], src.Pix[so:so+rowBytes])
	}
	return dst
}

// CopyRGBA copies src into dst, reallocating dst when sizes differ. The result is origin anchored.
// Surfaces that hand frames to another goroutine use it to honor the Present contract.
func CopyRGBA(dst, src *image.RGBA) *image.RGBA { return copyRGBA(dst, src) }
