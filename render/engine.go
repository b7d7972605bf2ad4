// Package render implements the frame buffer and transform engine: it draws
// the active source into an offscreen raster sized to the presentation
// surface, applies the color transform to the raw samples and presents the result.
package render

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/soypat/absorb"
	"github.com/soypat/absorb/source"
)

var (
	// ErrNotReady signals the caller should retry on the next tick. It is not a failure.
	ErrNotReady = source.ErrNotReady
	// ErrFrameSkipped wraps recoverable per-frame errors. The surface keeps showing the previous picture.
	ErrFrameSkipped = errors.New("frame skipped")
	// ErrNoSource is returned when rendering without a source.
	ErrNoSource = errors.New("no source")
)

// Stats counts engine outcomes.
type Stats struct {
	Rendered uint64 // frames presented
	Retried  uint64 // frames deferred because the source or surface was not ready
	Skipped  uint64 // frames dropped on recoverable errors
}

// Engine renders sources through a [Transformer] onto a [Surface].
// An engine without transformer presents the drawn raster as is.
// It is not safe for concurrent use; the presentation loop calls it from one goroutine.
type Engine struct {
	transformer Transformer
	buf         *absorb.PixelBuffer
	stats       Stats
}

// NewEngine returns an engine using t, or the CPU inversion if t is nil.
func NewEngine(t Transformer) *Engine {
	if t == nil {
		t = NewInvertTransformer()
	}
	return &Engine{transformer: t}
}

// NewRawEngine returns an engine that presents sources untransformed.
// It never reads pixels back so restricted sources are presented too.
func NewRawEngine() *Engine {
	return &Engine{}
}

// Stats returns the outcome counters.
func (e *Engine) Stats() Stats { return e.stats }

// RenderFrame draws src into a raster the size of surf's display area using policy,
// inverts it and presents it. It returns ErrNotReady when src has no pixel data yet
// or the surface has no area, and an error wrapping ErrFrameSkipped when the frame
// could not be transformed or presented.
func (e *Engine) RenderFrame(src source.Source, surf Surface, policy FitPolicy) error {
	if src == nil {
		return ErrNoSource
	}
	log := absorb.Logger()
	area := surf.Bounds()
	w, h := area.Dx(), area.Dy()
	if w <= 0 || h <= 0 || !src.Ready() {
		e.stats.Retried++
		return ErrNotReady
	}
	e.ensureBuffer(w, h)

	sw, sh := src.Size()
	dr := FitRect(sw, sh, image.Rect(0, 0, w, h), policy)
	log.Debug("render frame", slog.String("source", src.Kind().String()), slog.Int("width", w), slog.Int("height", h), slog.String("fit", policy.String()), slog.Any("rect", dr))
	if err := src.Draw(e.buf.RGBA(), dr); err != nil {
		if errors.Is(err, source.ErrNotReady) {
			e.stats.Retried++
			return ErrNotReady
		}
		return e.skip(fmt.Errorf("drawing %s: %w", src.Kind(), err))
	}

	if e.transformer != nil {
		if source.IsRestricted(src) {
			return e.skip(fmt.Errorf("reading pixels: %w", source.ErrTainted))
		}
		if err := e.transformer.Transform(e.buf); err != nil {
			return e.skip(fmt.Errorf("transforming pixels: %w", err))
		}
	}
	if err := surf.Present(e.buf.RGBA()); err != nil {
		return e.skip(fmt.Errorf("writing pixels: %w", err))
	}
	e.stats.Rendered++
	return nil
}

// ensureBuffer sizes the raster to the display area and clears it.
func (e *Engine) ensureBuffer(w, h int) {
	if e.buf == nil {
		e.buf = absorb.NewPixelBuffer(w, h)
		return
	}
	if d := e.buf.Dims(); d.Width != w || d.Height != h {
		e.buf = absorb.NewPixelBuffer(w, h)
		return
	}
	e.buf.Clear()
}

func (e *Engine) skip(err error) error {
	e.stats.Skipped++
	if errors.Is(err, source.ErrTainted) {
		absorb.Logger().Warn("frame skipped, canvas tainted by cross-origin data", slog.Any("err", err))
	} else {
		absorb.Logger().Warn("frame skipped", slog.Any("err", err))
	}
	return fmt.Errorf("%w: %w", ErrFrameSkipped, err)
}
