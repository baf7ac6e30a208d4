package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels caps width*height of an upload before it is fully decoded,
// and of the intermediate image produced by the shortest-side resize.
const DefaultMaxPixels = 89_478_485

// DecodeError reports bytes that could not be turned into an Image.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode image: %s: %v", e.Reason, e.Err)
	}
	return "decode image: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Image is a decoded upload. Pixels is always opaque 8-bit RGB stored in an
// RGBA buffer whose alpha channel is 255 everywhere.
type Image struct {
	Pixels *image.RGBA
	Format string
	MIME   string
}

func (img *Image) Width() int  { return img.Pixels.Bounds().Dx() }
func (img *Image) Height() int { return img.Pixels.Bounds().Dy() }

// Decoder turns raw upload bytes into an Image.
type Decoder struct {
	MaxPixels int
}

func NewDecoder(maxPixels int) *Decoder {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Decoder{MaxPixels: maxPixels}
}

// Decode decodes data with the default pixel budget.
func Decode(data []byte) (*Image, error) {
	return NewDecoder(DefaultMaxPixels).Decode(data)
}

// Decode sniffs, bounds-checks and decodes data. Every failure, including a
// panicking format decoder, comes back as a *DecodeError.
func (d *Decoder) Decode(data []byte) (img *Image, err error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty upload"}
	}

	mime := mimetype.Detect(data).String()
	if !strings.HasPrefix(mime, "image/") {
		return nil, &DecodeError{Reason: fmt.Sprintf("unsupported content type %q", mime)}
	}

	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = &DecodeError{Reason: fmt.Sprintf("decoder panic: %v", r)}
		}
	}()

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: "unreadable image header", Err: err}
	}
	if err := d.checkBounds(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: "malformed image data", Err: err}
	}
	b := src.Bounds()
	if err := d.checkBounds(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}

	return &Image{
		Pixels: toRGB(src),
		Format: format,
		MIME:   mime,
	}, nil
}

func (d *Decoder) checkBounds(w, h int) error {
	if w <= 0 || h <= 0 {
		return &DecodeError{Reason: fmt.Sprintf("invalid dimensions %dx%d", w, h)}
	}
	if int64(w)*int64(h) > int64(d.MaxPixels) {
		return &DecodeError{Reason: fmt.Sprintf("image too large: %dx%d exceeds %d pixels", w, h, d.MaxPixels)}
	}
	rw, rh := resizedDims(w, h, ResizeSize)
	if int64(rw)*int64(rh) > int64(d.MaxPixels) {
		return &DecodeError{Reason: fmt.Sprintf("image too elongated: %dx%d resizes to %dx%d", w, h, rw, rh)}
	}
	return nil
}

// toRGB converts any colour model to opaque RGB. Every pixel goes through
// color.NRGBAModel, so grayscale is replicated into all three channels,
// palettes are expanded and alpha is dropped without premultiplying.
func toRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			i := dst.PixOffset(x-b.Min.X, y-b.Min.Y)
			dst.Pix[i+0] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			dst.Pix[i+3] = 0xff
		}
	}
	return dst
}
