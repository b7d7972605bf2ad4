package render

import (
	"log/slog"

	"github.com/soypat/absorb"
	"github.com/soypat/absorb/filters"
)

// Transformer applies the color transform to a raster in place.
type Transformer interface {
	Transform(pb *absorb.PixelBuffer) error
}

// FilterTransformer runs a CPU [absorb.Filter] in place.
type FilterTransformer struct {
	Filter absorb.Filter
}

// Transform implements [Transformer].
func (ft FilterTransformer) Transform(pb *absorb.PixelBuffer) error {
	_, err := ft.Filter.Process(nil, pb)
	return err
}

// NewInvertTransformer returns the CPU channel inversion transformer.
func NewInvertTransformer() FilterTransformer {
	return FilterTransformer{Filter: filters.NewInvert()}
}

// GPUTransformer runs the GPU inversion compute shader.
type GPUTransformer struct {
	Filter *filters.InvertFilterGPU
}

// Transform implements [Transformer].
func (gt GPUTransformer) Transform(pb *absorb.PixelBuffer) error {
	return gt.Filter.ProcessInPlace(pb)
}

// Fallback runs Primary and, if it fails, Secondary. After a primary failure
// the primary is not used again.
type Fallback struct {
	Primary   Transformer
	Secondary Transformer
	failed    bool
}

// Transform implements [Transformer].
func (fb *Fallback) Transform(pb *absorb.PixelBuffer) error {
	if !fb.failed {
		err := fb.Primary.Transform(pb)
		if err == nil {
			return nil
		}
		fb.failed = true
		absorb.Logger().Warn("primary transform failed, falling back", slog.Any("err", err))
	}
	return fb.Secondary.Transform(pb)
}
