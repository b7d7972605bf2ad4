package absorb

import (
	"errors"
	"image"
	"io"
)

// Image is a low-level, whole-buffer image access abstraction of raw memory.
// It does not do bounds abstraction. As made implicit by Dims signature, row spacing must be homogenous in images.
type Image interface {
	// Dims returns information on in-memory image structure.
	// Row spacing must be homogenous in entire image separated by stride bytes.
	Dims() Dims
	// ReadAt reads from the image buffer of pixels, which may be in-memory or elsewhere (GPU, remote surface).
	//
	// Users should always try casting [Image] to [ImageBuffered]
	// to see if they can work with the image in-memory which is more efficient.
	io.ReaderAt
}

type ImageBuffered interface {
	Image
	// Buffer returns the raw underlying buffer for images stored in memory.
	// Buffer returns the entire buffer or nil to signal buffer is currently not in memory.
	Buffer() []byte
}

// Filter is a low-level per-image transformation.
type Filter interface {
	// ShapeIO returns expected output and input [Shape] of the filter.
	// output shape MUST match Process [Dims.Shape] output.
	ShapeIO() (output, input Shape)
	// Process processes an input image and writes the result to
	// destination buffer and returns the dimensions of the resulting image.
	//
	// If destination buffer is nil Filter will assert [ImageBuffered.Buffer] non-nilness
	// and use the buffer as the destination data.
	// Use [ValidateProcessArgs] to acquire dst buffer and validate arguments.
	Process(dstOrNilForInPlace []byte, src Image) (Dims, error)
	// Controls returns the actual controls of the filter.
	Controls() []Control
}

type Shape int

const (
	shapeUndefined Shape = iota // undefined
	ShapeRGBA8888               // rgba8888
)

func (sh Shape) String() string {
	switch sh {
	case ShapeRGBA8888:
		return "rgba8888"
	}
	return "undefined"
}

func (sh Shape) BitsPerPixel() (bits int) {
	switch sh {
	default:
		bits = -1
	case ShapeRGBA8888:
		bits = 32
	}
	return bits
}

type Dims struct {
	Width  int
	Height int
	Stride int
	Shape  Shape
}

func (d Dims) Validate() error {
	pixbits := d.Shape.BitsPerPixel()
	if d.Height <= 0 || d.Width <= 0 {
		return errEmptyImage
	} else if pixbits < 1 {
		return errors.New("bad pixel shape")
	} else if (d.Width*pixbits+7)/8 > d.Stride {
		return errors.New("stride smaller than pixel row size")
	}
	return nil
}

func (d Dims) NumPixels() int64 {
	return int64(d.Height) * int64(d.Width)
}

// Size returns the readable section size of raw image in bytes.
func (d Dims) Size() int64 {
	if d.Height == 0 || d.Width == 0 {
		return 0
	}
	return int64(d.Height-1)*int64(d.Stride) + int64(d.SizeRow())
}

func (d Dims) SizeRow() int {
	return (d.Width*d.Shape.BitsPerPixel() + 7) / 8
}

var errEmptyImage = errors.New("empty image")

// PixelBuffer is an RGBA8888 raster backed by an [image.RGBA] so that it
// can be drawn into with the image/draw family and processed in place by a [Filter].
type PixelBuffer struct {
	img *image.RGBA
}

var _ ImageBuffered = (*PixelBuffer)(nil)

// NewPixelBuffer allocates a zeroed (fully transparent) width x height buffer.
func NewPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// WrapRGBA wraps img without copying. img's origin is ignored for Dims purposes
// but the underlying Pix slice must start at the first pixel of the bounds.
func WrapRGBA(img *image.RGBA) *PixelBuffer {
	return &PixelBuffer{img: img}
}

// RGBA returns the underlying image. Writes to it are seen by the buffer.
func (pb *PixelBuffer) RGBA() *image.RGBA { return pb.img }

// Bounds returns the raster bounds, always anchored at the origin for buffers made by NewPixelBuffer.
func (pb *PixelBuffer) Bounds() image.Rectangle { return pb.img.Rect }

// Dims implements [Image].
func (pb *PixelBuffer) Dims() Dims {
	return Dims{
		Width:  pb.img.Rect.Dx(),
		Height: pb.img.Rect.Dy(),
		Stride: pb.img.Stride,
		Shape:  ShapeRGBA8888,
	}
}

// Buffer implements [ImageBuffered].
func (pb *PixelBuffer) Buffer() []byte { return pb.img.Pix }

// ReadAt implements [io.ReaderAt].
func (pb *PixelBuffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	} else if off >= int64(len(pb.img.Pix)) {
		return 0, io.EOF
	}
	n := copy(p, pb.img.Pix[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Clear sets every sample to zero, i.e: transparent black.
func (pb *PixelBuffer) Clear() {
	clear(pb.img.Pix)
}

// ValidateProcessArgs gets correct write destination buffer and
// provides basic guarantees of inputs to Filter such as:
//   - Source [Dims.Validate] early validation. Always returned as called.
//   - Valid input image for buffered in-place operations.
//   - shape match for in-place operations.
//   - For users who know the output stride and height offers checking of dst buffer size.
//     Use dstDims.Stride=0 to omit this check.
//
// dstDims.Shape must be set to support in-place operations. Other fields are optional but provide buffer size checks.
// srcDims is always returned as called by src.Dims.
func ValidateProcessArgs(dst []byte, dstShape Dims, src Image) (_ []byte, srcDims Dims, err error) {
	srcDims = src.Dims()
	if err = srcDims.Validate(); err != nil {
		return nil, srcDims, err
	}
	requiredMinDstSize := int64(dstShape.Stride) * int64(dstShape.Height)
	if dst == nil {
		if dstShape.Shape != srcDims.Shape {
			return nil, srcDims, errors.New("src must match filter output shape for in-place op")
		}
		buffered, ok := src.(ImageBuffered)
		if !ok {
			return nil, srcDims, errors.New("src does not implement ImageBuffered for in-place op")
		}
		buf := buffered.Buffer()
		if buf == nil {
			return nil, srcDims, errors.New("src returned nil buffer on in-place op")
		} else if len(buf) < int(srcDims.Size()) {
			return nil, srcDims, errors.New("src ImageBuffered returned a buffer too small to represent complete image")
		}
		// In-place writes follow source layout, last row may be unpadded.
		requiredMinDstSize = srcDims.Size()
		dst = buf
	}
	if int64(len(dst)) < requiredMinDstSize {
		return dst, srcDims, errors.New("destination buffer not large enough to store output")
	}
	return dst, srcDims, nil
}
