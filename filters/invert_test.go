package filters

import (
	"image"
	"math/rand"
	"testing"

	"github.com/soypat/absorb"
)

func TestInvertInvolutive(t *testing.T) {
	// Every possible channel value inverts and restores.
	pb := absorb.NewPixelBuffer(256, 1)
	buf := pb.Buffer()
	for x := 0; x < 256; x++ {
		buf[x*4] = uint8(x)
		buf[x*4+1] = uint8(255 - x)
		buf[x*4+2] = uint8(x * 7)
		buf[x*4+3] = uint8(x * 13)
	}
	original := append([]byte(nil), buf...)
	f := NewInvert()
	if _, err := f.Process(nil, pb); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(buf); i += 4 {
		for c := 0; c < 3; c++ {
			if buf[i+c] != 255-original[i+c] {
				t.Fatalf("byte %d: got %d want %d", i+c, buf[i+c], 255-original[i+c])
			}
		}
		if buf[i+3] != original[i+3] {
			t.Fatalf("alpha at %d changed", i)
		}
	}
	if _, err := f.Process(nil, pb); err != nil {
		t.Fatal(err)
	}
	for i := range buf {
		if buf[i] != original[i] {
			t.Fatalf("byte %d not restored: got %d want %d", i, buf[i], original[i])
		}
	}
}

func TestInvertOpaqueRed(t *testing.T) {
	pb := absorb.NewPixelBuffer(100, 100)
	buf := pb.Buffer()
	for i := 0; i < len(buf); i += 4 {
		buf[i], buf[i+1], buf[i+2], buf[i+3] = 255, 0, 0, 255
	}
	if _, err := NewInvert().Process(nil, pb); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(buf); i += 4 {
		if buf[i] != 0 || buf[i+1] != 255 || buf[i+2] != 255 || buf[i+3] != 255 {
			t.Fatalf("pixel %d: got %v", i/4, buf[i:i+4])
		}
	}
}

func TestInvertToDstFromSubImage(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	full := GenerateRandomSquaresRGBA(rng, 32, 32, 8, 4, 10)
	original := append([]byte(nil), full.Pix...)
	sub := full.SubImage(image.Rect(4, 2, 20, 12)).(*image.RGBA)
	w, h := sub.Rect.Dx(), sub.Rect.Dy()
	dst := make([]byte, w*h*4)
	dims, err := NewInvert().Process(dst, absorb.WrapRGBA(sub))
	if err != nil {
		t.Fatal(err)
	}
	if dims.Width != w || dims.Height != h || dims.Stride != w*4 {
		t.Fatalf("unexpected dims %+v", dims)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s := full.PixOffset(sub.Rect.Min.X+x, sub.Rect.Min.Y+y)
			d := y*dims.Stride + x*4
			if dst[d] != 255-full.Pix[s] || dst[d+3] != full.Pix[s+3] {
				t.Fatalf("pixel (%d,%d) mismatch", x, y)
			}
		}
	}
	for i := range full.Pix {
		if full.Pix[i] != original[i] {
			t.Fatalf("source byte %d modified", i)
		}
	}
}

func TestInvertInPlaceSubImage(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	full := GenerateRandomSquaresRGBA(rng, 16, 16, 6, 2, 8)
	original := append([]byte(nil), full.Pix...)
	sub := full.SubImage(image.Rect(3, 3, 9, 12)).(*image.RGBA)
	if _, err := NewInvert().Process(nil, absorb.WrapRGBA(sub)); err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			i := full.PixOffset(x, y)
			inside := image.Pt(x, y).In(sub.Rect)
			want := original[i]
			if inside {
				want = 255 - original[i]
			}
			if full.Pix[i] != want {
				t.Fatalf("pixel (%d,%d) inside=%v: got %d want %d", x, y, inside, full.Pix[i], want)
			}
		}
	}
}

func TestInvertShapeMismatch(t *testing.T) {
	pb := absorb.NewPixelBuffer(2, 2)
	mismatched := PointFilter{Fn: InvertRGBA}
	if _, err := mismatched.Process(nil, pb); err == nil {
		t.Fatal("expected shape mismatch")
	}
	var f PointFilter
	f.In, f.Out = absorb.ShapeRGBA8888, absorb.ShapeRGBA8888
	if _, err := f.Process(nil, pb); err == nil {
		t.Fatal("expected nil func error")
	}
	if _, err := NewInvert().Process(make([]byte, 4), pb); err == nil {
		t.Fatal("expected short destination error")
	}
}
