package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/soypat/absorb"
)

// Image is a decoded static bitmap source.
type Image struct {
	img        image.Image
	format     string
	restricted bool
	// Scaler used by Draw. nil means DefaultScaler.
	Scaler draw.Scaler
}

var (
	_ Source     = (*Image)(nil)
	_ Restricter = (*Image)(nil)
)

// NewImage wraps an already decoded image.
func NewImage(img image.Image) *Image {
	return &Image{img: img}
}

// Decode reads and decodes an image in any registered format:
// png, jpeg, gif, bmp, tiff and webp. Failures wrap ErrDecode.
func Decode(r io.Reader) (*Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: zero sized %s image", ErrDecode, format)
	}
	b := img.Bounds()
	absorb.Logger().Info("image decoded", slog.String("format", format), slog.Int("width", b.Dx()), slog.Int("height", b.Dy()))
	return &Image{img: img, format: format}, nil
}

// DecodeBytes decodes raw file contents as handed over by a file picker.
func DecodeBytes(b []byte) (*Image, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrDecode)
	}
	return Decode(bytes.NewReader(b))
}

// LoadURL fetches and decodes an image over HTTP. Images served from an origin
// other than origin are restricted: they draw normally but their pixels cannot
// be read back. A nil origin restricts every remote image.
func LoadURL(ctx context.Context, client *http.Client, rawURL string, origin *url.URL) (*Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http status %s", ErrDecode, resp.Status)
	}
	img, err := Decode(resp.Body)
	if err != nil {
		return nil, err
	}
	img.restricted = !sameOrigin(u, origin) && resp.Header.Get("Access-Control-Allow-Origin") == ""
	return img, nil
}

func sameOrigin(a, b *url.URL) bool {
	return b != nil && a.Scheme == b.Scheme && a.Host == b.Host
}

// Kind implements [Source].
func (im *Image) Kind() Kind { return KindImage }

// Format returns the name of the decoded format, i.e: "png". Empty for wrapped images.
func (im *Image) Format() string { return im.format }

// Restricted implements [Restricter].
func (im *Image) Restricted() bool { return im.restricted }

// Ready implements [Source]: decoding completed with nonzero dimensions.
func (im *Image) Ready() bool {
	return im != nil && im.img != nil && !im.img.Bounds().Empty()
}

// Size implements [Source].
func (im *Image) Size() (width, height int) {
	if !im.Ready() {
		return 0, 0
	}
	b := im.img.Bounds()
	return b.Dx(), b.Dy()
}

// Draw implements [Source].
func (im *Image) Draw(dst draw.Image, r image.Rectangle) error {
	if !im.Ready() {
		return ErrNotReady
	}
	scale(im.Scaler, dst, r, im.img)
	return nil
}

// IsDecodeError reports whether err originates from a failed image decode.
func IsDecodeError(err error) bool { return errors.Is(err, ErrDecode) }
