package filters

import "github.com/soypat/absorb"

// NewInvert creates a filter that inverts the color channels of RGBA pixels,
// leaving alpha untouched. Applying it twice yields the original image.
func NewInvert() *PointFilter {
	return &PointFilter{
		In:  absorb.ShapeRGBA8888,
		Out: absorb.ShapeRGBA8888,
		Fn:  InvertRGBA,
	}
}

// InvertRGBA is the [PointFunc] of [NewInvert]. dst and src may be the same slice.
func InvertRGBA(dst, src []byte) {
	for i := 0; i+3 < len(src); i += 4 {
		dst[i] = 255 - src[i]
		dst[i+1] = 255 - src[i+1]
		dst[i+2] = 255 - src[i+2]
		dst[i+3] = src[i+3]
	}
}
