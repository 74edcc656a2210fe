package raster

import (
	"image"
	"io"

	"github.com/benoitkugler/svgbridge/host"
	"github.com/gogpu/gg"
)

var (
	_ host.CanvasFactory = Canvases{}
	_ host.Canvas        = (*Canvas)(nil)
)

// Canvases creates gg backed canvases.
type Canvases struct{}

// NewCanvas returns a transparent canvas of the given size.
func (Canvases) NewCanvas(width, height int) host.Canvas {
	return NewCanvas(width, height)
}

// Canvas wraps a gg drawing context.
type Canvas struct {
	dc *gg.Context
}

// NewCanvas returns a transparent canvas of the given size.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{dc: gg.NewContext(width, height)}
}

// Width and Height return the canvas size, in pixels.
func (c *Canvas) Width() int  { return c.dc.Width() }
func (c *Canvas) Height() int { return c.dc.Height() }

// DrawImage copies img at (x, y), with its own size.
func (c *Canvas) DrawImage(img image.Image, x, y int) {
	c.dc.DrawImage(gg.ImageBufFromImage(img), float64(x), float64(y))
}

// Image returns a snapshot of the canvas content.
func (c *Canvas) Image() image.Image { return c.dc.Image() }

// EncodePNG writes the canvas content as PNG.
func (c *Canvas) EncodePNG(w io.Writer) error { return c.dc.EncodePNG(w) }

// Close releases the drawing context.
func (c *Canvas) Close() error { return c.dc.Close() }
