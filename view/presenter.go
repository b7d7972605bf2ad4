package view

import (
	"errors"
	"image"
	"log/slog"
	"time"

	"github.com/soypat/absorb"
	"github.com/soypat/absorb/loop"
	"github.com/soypat/absorb/render"
	"github.com/soypat/absorb/source"
)

// PolicyFunc chooses the fit policy for a source kind on a display area.
// It is supplied by the presentation layer.
type PolicyFunc func(kind source.Kind, area image.Rectangle) render.FitPolicy

// DefaultPolicy covers live video on narrow surfaces and stretches otherwise.
func DefaultPolicy(kind source.Kind, area image.Rectangle) render.FitPolicy {
	return render.PolicyFor(kind, render.ClassifyWidth(area.Dx(), render.DefaultNarrowWidth))
}

// Presenter is the presentation loop controller. While running it renders the
// source once on entry and, for live video or sources not ready yet, again on
// every refresh tick. Static images are rendered once per entry.
// Presenter must be used from the scheduler's goroutine.
type Presenter struct {
	sched   loop.Scheduler
	engine  *render.Engine
	surface render.Surface
	policy  PolicyFunc

	running bool
	src     source.Source
	handle  loop.FrameID // pending tick, zero when none
	renders int
}

// NewPresenter returns an idle presenter. A nil policy uses DefaultPolicy.
func NewPresenter(sched loop.Scheduler, engine *render.Engine, surface render.Surface, policy PolicyFunc) *Presenter {
	if policy == nil {
		policy = DefaultPolicy
	}
	return &Presenter{sched: sched, engine: engine, surface: surface, policy: policy}
}

// Running reports whether the presenter is in the Running state.
func (p *Presenter) Running() bool { return p.running }

// Handle returns the pending tick's id, zero when no tick is scheduled.
func (p *Presenter) Handle() loop.FrameID { return p.handle }

// Renders returns the number of render invocations so far.
func (p *Presenter) Renders() int { return p.renders }

// Start enters Running and renders src immediately. Starting while running is a no-op.
func (p *Presenter) Start(src source.Source) {
	if p.running || src == nil {
		return
	}
	p.running = true
	p.src = src
	absorb.Logger().Debug("presentation loop started", slog.String("source", src.Kind().String()))
	p.step(time.Now())
}

// Stop returns to Idle and cancels any pending tick. No render runs after Stop returns.
func (p *Presenter) Stop() {
	if !p.running {
		return
	}
	if p.handle != 0 {
		p.sched.CancelFrame(p.handle)
		p.handle = 0
	}
	p.running = false
	p.src = nil
	absorb.Logger().Debug("presentation loop stopped", slog.Int("renders", p.renders))
}

func (p *Presenter) step(time.Time) {
	p.handle = 0
	if !p.running {
		return
	}
	src := p.src
	p.renders++
	err := p.engine.RenderFrame(src, p.surface, p.policy(src.Kind(), p.surface.Bounds()))
	retry := errors.Is(err, render.ErrNotReady)
	if err != nil && !retry && !errors.Is(err, render.ErrFrameSkipped) {
		absorb.Logger().Error("render failed", slog.Any("err", err))
	}
	if retry || src.Kind() == source.KindVideo {
		p.handle = p.sched.RequestFrame(p.step)
	}
}
