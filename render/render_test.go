package render

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/soypat/absorb"
	"github.com/soypat/absorb/source"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestFitRect(t *testing.T) {
	dst := image.Rect(0, 0, 400, 800)
	tests := []struct {
		name   string
		sw, sh int
		dst    image.Rectangle
		policy FitPolicy
		want   image.Rectangle
	}{
		{"stretch", 640, 480, dst, FitStretch, dst},
		{"cover wide source", 640, 480, dst, FitCover, image.Rect(-333, 0, 734, 800)},
		{"cover tall source", 480, 640, image.Rect(0, 0, 800, 400), FitCover, image.Rect(0, -333, 800, 734)},
		{"cover same ratio", 640, 480, image.Rect(0, 0, 320, 240), FitCover, image.Rect(0, 0, 320, 240)},
		{"cover offset dst", 100, 100, image.Rect(10, 10, 30, 20), FitCover, image.Rect(10, 5, 30, 25)},
		{"empty source", 0, 0, dst, FitCover, dst},
	}
	for _, tt := range tests {
		got := FitRect(tt.sw, tt.sh, tt.dst, tt.policy)
		if got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
		if tt.policy == FitCover && !tt.dst.Empty() && tt.sw > 0 && !tt.dst.In(got) {
			t.Errorf("%s: cover rect %v does not cover %v", tt.name, got, tt.dst)
		}
	}
}

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		kind  source.Kind
		width int
		want  FitPolicy
	}{
		{source.KindVideo, 400, FitCover},
		{source.KindVideo, 768, FitCover},
		{source.KindVideo, 769, FitStretch},
		{source.KindImage, 400, FitStretch},
		{source.KindImage, 1920, FitStretch},
	}
	for _, tt := range tests {
		got := PolicyFor(tt.kind, ClassifyWidth(tt.width, 0))
		if got != tt.want {
			t.Errorf("%v at width %d: got %v, want %v", tt.kind, tt.width, got, tt.want)
		}
	}
}

func TestRenderOpaqueRedImage(t *testing.T) {
	e := NewEngine(nil)
	surf := NewMemorySurface(100, 100)
	src := source.NewImage(solid(100, 100, color.RGBA{R: 255, A: 255}))
	if err := e.RenderFrame(src, surf, FitStretch); err != nil {
		t.Fatal(err)
	}
	out := surf.Last()
	want := color.RGBA{R: 0, G: 255, B: 255, A: 255}
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if got := out.RGBAAt(x, y); got != want {
				t.Fatalf("(%d,%d): got %v, want %v", x, y, got, want)
			}
		}
	}
	if st := e.Stats(); st.Rendered != 1 || st.Skipped != 0 || st.Retried != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestRenderVideoFirstPixel(t *testing.T) {
	in := color.RGBA{R: 12, G: 200, B: 99, A: 180}
	v := source.NewVideo()
	e := NewEngine(nil)
	surf := NewMemorySurface(640, 480)
	if err := e.RenderFrame(v, surf, FitStretch); !errors.Is(err, ErrNotReady) {
		t.Fatalf("want ErrNotReady before first frame, got %v", err)
	}
	v.Push(solid(640, 480, in), nil)
	if err := e.RenderFrame(v, surf, FitStretch); err != nil {
		t.Fatal(err)
	}
	got := surf.Last().RGBAAt(0, 0)
	want := color.RGBA{R: 255 - in.R, G: 255 - in.G, B: 255 - in.B, A: in.A}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if st := e.Stats(); st.Retried != 1 || st.Rendered != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestRenderFollowsSurfaceResize(t *testing.T) {
	e := NewEngine(nil)
	surf := NewMemorySurface(50, 40)
	src := source.NewImage(solid(10, 10, color.RGBA{G: 255, A: 255}))
	if err := e.RenderFrame(src, surf, FitStretch); err != nil {
		t.Fatal(err)
	}
	surf.Resize(80, 20)
	if err := e.RenderFrame(src, surf, FitStretch); err != nil {
		t.Fatal(err)
	}
	if b := surf.Last().Bounds(); b.Dx() != 80 || b.Dy() != 20 {
		t.Fatalf("frame not resized: %v", b)
	}
	surf.Resize(0, 0)
	if err := e.RenderFrame(src, surf, FitStretch); !errors.Is(err, ErrNotReady) {
		t.Fatalf("want retry on empty surface, got %v", err)
	}
}

func TestRenderCoverLeavesNoGaps(t *testing.T) {
	e := NewEngine(nil)
	surf := NewMemorySurface(300, 600)
	v := source.NewVideo()
	v.Push(solid(640, 480, color.RGBA{A: 255}), nil)
	if err := e.RenderFrame(v, surf, FitCover); err != nil {
		t.Fatal(err)
	}
	out := surf.Last()
	for _, p := range []image.Point{{0, 0}, {299, 0}, {0, 599}, {299, 599}, {150, 300}} {
		if got := out.RGBAAt(p.X, p.Y); got != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
			t.Fatalf("%v: got %v, cover left a gap", p, got)
		}
	}
}

type restrictedImage struct{ *source.Image }

func (restrictedImage) Restricted() bool { return true }

func TestRenderTaintedSkipsFrame(t *testing.T) {
	e := NewEngine(nil)
	surf := NewMemorySurface(10, 10)
	src := restrictedImage{source.NewImage(solid(10, 10, color.RGBA{R: 255, A: 255}))}
	err := e.RenderFrame(src, surf, FitStretch)
	if !errors.Is(err, ErrFrameSkipped) || !errors.Is(err, source.ErrTainted) {
		t.Fatalf("want skipped tainted frame, got %v", err)
	}
	if surf.Presents() != 0 {
		t.Fatal("tainted frame presented")
	}
	if st := e.Stats(); st.Skipped != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestRawEnginePresentsRestricted(t *testing.T) {
	e := NewRawEngine()
	surf := NewMemorySurface(10, 10)
	src := restrictedImage{source.NewImage(solid(10, 10, color.RGBA{R: 255, A: 255}))}
	if err := e.RenderFrame(src, surf, FitStretch); err != nil {
		t.Fatal(err)
	}
	if got := surf.Last().RGBAAt(5, 5); got != (color.RGBA{R: 255, A: 255}) {
		t.Fatalf("raw engine altered pixels: %v", got)
	}
}

func TestRenderPresentErrorSkips(t *testing.T) {
	e := NewEngine(nil)
	surf := NewMemorySurface(10, 10)
	surf.Err = errors.New("surface lost")
	err := e.RenderFrame(source.NewImage(solid(4, 4, color.RGBA{A: 255})), surf, FitStretch)
	if !errors.Is(err, ErrFrameSkipped) {
		t.Fatalf("want skipped frame, got %v", err)
	}
}

type failingTransformer struct{ calls int }

func (ft *failingTransformer) Transform(*absorb.PixelBuffer) error {
	ft.calls++
	return errors.New("device lost")
}

func TestFallbackTransformer(t *testing.T) {
	primary := &failingTransformer{}
	fb := &Fallback{Primary: primary, Secondary: NewInvertTransformer()}
	e := NewEngine(fb)
	surf := NewMemorySurface(4, 4)
	src := source.NewImage(solid(4, 4, color.RGBA{R: 255, A: 255}))
	for i := 0; i < 3; i++ {
		if err := e.RenderFrame(src, surf, FitStretch); err != nil {
			t.Fatal(err)
		}
	}
	if primary.calls != 1 {
		t.Fatalf("primary retried after failure: %d calls", primary.calls)
	}
	if got := surf.Last().RGBAAt(1, 1); got != (color.RGBA{G: 255, B: 255, A: 255}) {
		t.Fatalf("fallback did not invert: %v", got)
	}
}

func TestRenderNoSource(t *testing.T) {
	if err := NewEngine(nil).RenderFrame(nil, NewMemorySurface(1, 1), FitStretch); !errors.Is(err, ErrNoSource) {
		t.Fatalf("want ErrNoSource, got %v", err)
	}
}
