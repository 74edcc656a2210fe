// Implements the raster side of the export: decoding SVG blobs
// into images, by wrapping oksvg and rasterx, and offscreen
// canvases backed by gg.
package raster

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"mime"

	"github.com/benoitkugler/svgbridge/host"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
	"golang.org/x/net/html/charset"
)

var _ host.ImageDecoder = (*Decoder)(nil)

// MaxSupersample bounds the supersampling factor.
const MaxSupersample = 4

var (
	// ErrRevoked is returned when the image source handle is not registered (anymore).
	ErrRevoked  = errors.New("raster: handle is not registered")
	// ErrTooLarge is returned when the raster would exceed the pixel limit.
	ErrTooLarge = errors.New("raster: image too large")
	errNotSVG   = errors.New("raster: root element is not <svg>")
)

// ParseErrorMode maps "ignore", "warn" and "strict" to the oksvg modes.
// The empty string is "ignore".
func ParseErrorMode(s string) (oksvg.ErrorMode, error) {
	switch s {
	case "", "ignore":
		return oksvg.IgnoreErrorMode, nil
	case "warn":
		return oksvg.WarnErrorMode, nil
	case "strict":
		return oksvg.StrictErrorMode, nil
	default:
		return 0, fmt.Errorf("raster: unknown error mode %q", s)
	}
}

// Decoder decodes SVG blobs found in a registry.
type Decoder struct {
	blobs host.BlobRegistry

	// ErrorMode tells how to react to unsupported SVG elements.
	ErrorMode oksvg.ErrorMode
	// Supersample renders at Supersample times the requested
	// size, then reduces to the requested size. Values below 2
	// disable it.
	Supersample int
	// MaxPixels bounds the pixel count of the supersampled raster.
	// Zero means host.DefaultMaxPixels.
	MaxPixels int
}

// NewDecoder returns a decoder ignoring unsupported elements,
// without supersampling.
func NewDecoder(blobs host.BlobRegistry) *Decoder {
	return &Decoder{blobs: blobs, ErrorMode: oksvg.IgnoreErrorMode, Supersample: 1, MaxPixels: host.DefaultMaxPixels}
}

// Decode resolves the source handle and rasterizes the SVG it
// refers to, fitted in (src.Width, src.Height).
// The handle is only read: releasing it is the caller's business.
func (d *Decoder) Decode(src host.ImageSource) (image.Image, error) {
	if src.Width <= 0 || src.Height <= 0 {
		return nil, fmt.Errorf("raster: invalid image size %dx%d", src.Width, src.Height)
	}
	maxPixels := d.MaxPixels
	if maxPixels <= 0 {
		maxPixels = host.DefaultMaxPixels
	}
	if !host.FitsPixels(src.Width, src.Height, clampSupersample(d.Supersample), maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d (x%d) exceeds %d pixels", ErrTooLarge,
			src.Width, src.Height, clampSupersample(d.Supersample), maxPixels)
	}
	b, ok := d.blobs.Resolve(src.Src)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRevoked, src.Src)
	}
	if mediaType, _, err := mime.ParseMediaType(b.Type); err != nil || mediaType != "image/svg+xml" {
		return nil, fmt.Errorf("raster: unsupported media type %q", b.Type)
	}
	if err := checkRoot(bytes.NewReader(b.Data)); err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(b.Data), d.ErrorMode)
	if err != nil {
		return nil, fmt.Errorf("raster: invalid svg: %w", err)
	}
	return RasterIcon(icon, src.Width, src.Height, d.Supersample), nil
}

// checkRoot makes sure the document is an SVG one.
func checkRoot(r io.Reader) error {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel
	for {
		t, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return errors.New("raster: empty svg document")
			}
			return fmt.Errorf("raster: invalid svg: %w", err)
		}
		if se, ok := t.(xml.StartElement); ok {
			if se.Name.Local != "svg" {
				return errNotSVG
			}
			return nil
		}
	}
}

// RasterIcon renders the icon into a new image of size (width, height).
// The view box is scaled uniformly and centered, like an image
// element does with the default preserveAspectRatio.
// An icon without view box is drawn in user units.
// The size is not bounded here: callers handling untrusted
// sizes go through Decoder.Decode.
func RasterIcon(icon *oksvg.SvgIcon, width, height, supersample int) *image.RGBA {
	supersample = clampSupersample(supersample)
	w, h := width*supersample, height*supersample

	icon.Transform = fitTransform(icon.ViewBox.X, icon.ViewBox.Y, icon.ViewBox.W, icon.ViewBox.H,
		float64(width), float64(height), float64(supersample))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)
	if supersample == 1 {
		return img
	}

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), draw.Src, nil)
	return out
}

func clampSupersample(k int) int {
	if k < 1 {
		return 1
	}
	if k > MaxSupersample {
		return MaxSupersample
	}
	return k
}

// fitTransform maps the view box (x, y, vw, vh) into a (w, h) viewport,
// then scales by k.
func fitTransform(x, y, vw, vh, w, h, k float64) rasterx.Matrix2D {
	m := rasterx.Identity.Scale(k, k)
	if vw <= 0 || vh <= 0 {
		return m
	}
	s := math.Min(w/vw, h/vh)
	tx, ty := (w-vw*s)/2, (h-vh*s)/2
	return m.Translate(tx, ty).Scale(s, s).Translate(-x, -y)
}
