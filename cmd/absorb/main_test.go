package main

import (
	"image"
	"image/color"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/test"

	"github.com/soypat/absorb/capture"
	"github.com/soypat/absorb/internal/config"
	"github.com/soypat/absorb/render"
)

func TestNewDriver(t *testing.T) {
	if d, err := newDriver(config.DriverFake); err != nil {
		t.Fatal(err)
	} else if _, ok := d.(*capture.Fake); !ok {
		t.Fatalf("want fake driver, got %T", d)
	}
	if d, err := newDriver("MediaDevices"); err != nil {
		t.Fatal(err)
	} else if _, ok := d.(capture.MediaDevices); !ok {
		t.Fatalf("want mediadevices driver, got %T", d)
	}
	if _, err := newDriver("v4l"); err == nil {
		t.Fatal("expected unknown driver error")
	}
}

func TestNewTransformerCPU(t *testing.T) {
	tr, release := newTransformer(false)
	defer release()
	if _, ok := tr.(render.FilterTransformer); !ok {
		t.Fatalf("want cpu transformer, got %T", tr)
	}
}

func TestImageSurfaceDoubleBuffer(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()
	img := canvas.NewImageFromImage(nil)
	box := canvas.NewRectangle(color.Black)
	box.Resize(fyne.NewSize(4, 3))
	s := newImageSurface(img, box)
	if b := s.Bounds(); b != image.Rect(0, 0, 4, 3) {
		t.Fatalf("bounds follow box size: %v", b)
	}
	frame := image.NewRGBA(image.Rect(0, 0, 4, 3))
	frame.SetRGBA(0, 0, color.RGBA{R: 1, A: 255})
	if err := s.Present(frame); err != nil {
		t.Fatal(err)
	}
	first := img.Image.(*image.RGBA)
	frame.SetRGBA(0, 0, color.RGBA{R: 2, A: 255})
	s.Present(frame)
	second := img.Image.(*image.RGBA)
	if first == second {
		t.Fatal("presented into the displayed buffer")
	}
	if first.RGBAAt(0, 0).R != 1 || second.RGBAAt(0, 0).R != 2 {
		t.Fatal("frames not copied")
	}
	frame.SetRGBA(0, 0, color.RGBA{R: 3, A: 255})
	if second.RGBAAt(0, 0).R != 2 {
		t.Fatal("surface retained the engine's buffer")
	}
}
