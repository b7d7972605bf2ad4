package filters

import (
	"errors"

	"github.com/soypat/absorb"
)

var errShapeMismatch = errors.New("pixel shape mismatch")

// PointFunc processes a contiguous row of pixels.
// dst and src contain rowWidth pixels worth of bytes and may alias for in-place processing.
// The function should iterate through pixels: for i := 0; i < len(src); i += bytesPerPixel { ... }
type PointFunc func(dst, src []byte)

// PointFilter applies a per-pixel transformation using a callback function.
// It handles the iteration and buffering logic common to all per-pixel filters.
// The callback is invoked once per row with contiguous pixel data.
type PointFilter struct {
	In    absorb.Shape
	Out   absorb.Shape
	Fn    PointFunc
	Ctrls []absorb.Control
}

var _ absorb.Filter = (*PointFilter)(nil)

// ShapeIO implements [absorb.Filter].
func (f *PointFilter) ShapeIO() (output, input absorb.Shape) {
	return f.Out, f.In
}

// Controls implements [absorb.Filter].
func (f *PointFilter) Controls() []absorb.Control {
	return f.Ctrls
}

// Process implements [absorb.Filter].
func (f *PointFilter) Process(dst []byte, src absorb.Image) (absorb.Dims, error) {
	if f.Fn == nil {
		return absorb.Dims{}, errNilPixelFunc
	}

	outShape, inShape := f.ShapeIO()
	srcDims := src.Dims()
	if srcDims.Shape != inShape {
		return absorb.Dims{}, errShapeMismatch
	}

	outBytesPerPixel := (outShape.BitsPerPixel() + 7) / 8
	outStride := srcDims.Width * outBytesPerPixel
	if dst == nil {
		// In-place output keeps the source row layout.
		outStride = srcDims.Stride
	}

	dstDims := absorb.Dims{
		Width:  srcDims.Width,
		Height: srcDims.Height,
		Stride: outStride,
		Shape:  outShape,
	}

	dst, _, err := absorb.ValidateProcessArgs(dst, dstDims, src)
	if err != nil {
		return absorb.Dims{}, err
	}

	var srcBuf []byte
	if buffered, ok := src.(absorb.ImageBuffered); ok {
		srcBuf = buffered.Buffer()
	}

	srcRowBytes := srcDims.SizeRow()
	var rowBuf []byte // Fallback buffer for ReadAt.
	outRowBytes := srcDims.Width * outBytesPerPixel
	for y := 0; y < srcDims.Height; y++ {
		var srcRow []byte
		srcRowStart := y * srcDims.Stride
		if srcBuf != nil {
			srcRow = srcBuf[srcRowStart : srcRowStart+srcRowBytes]
		} else {
			if rowBuf == nil {
				rowBuf = make([]byte, srcRowBytes)
			}
			_, err := src.ReadAt(rowBuf, int64(srcRowStart))
			if err != nil {
				return absorb.Dims{}, err
			}
			srcRow = rowBuf
		}

		dstRowStart := y * outStride
		f.Fn(dst[dstRowStart:dstRowStart+outRowBytes], srcRow)
	}

	return dstDims, nil
}

var errNilPixelFunc = errorString("nil PixelFunc")

type errorString string

func (e errorString) Error() string { return string(e) }
