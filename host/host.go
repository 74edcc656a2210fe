// Defines the host capabilities the bridge is built on:
// element lookup, pointer capture, serialization of vector nodes,
// blob handles, image decoding, raster canvases and download triggering.
// Concrete implementations live in svgdom, blob, raster and download;
// tests substitute their own.
package host

import (
	"image"
	"io"
)

// Media types used along the export pipeline.
const (
	SVGMediaType    = "image/svg+xml;charset=utf-8"
	PNGMediaType    = "image/png"
	BinaryMediaType = "image/octet-stream"
)

// DefaultMaxPixels bounds the pixel count of a raster (8192x8192).
const DefaultMaxPixels = 1 << 26

// FitsPixels reports whether a width x height raster, scaled by
// scale along both axes, is not empty and holds at most maxPixels pixels.
func FitsPixels(width, height, scale, maxPixels int) bool {
	if width <= 0 || height <= 0 || scale <= 0 || maxPixels <= 0 {
		return false
	}
	// divide instead of multiplying, so that huge sizes can't overflow
	limit := maxPixels / scale / scale
	return height <= limit/width
}

// Element is an on-screen element able to receive pointer events.
type Element interface {
	ID() string
	// SetPointerCapture routes every further event of the pointer
	// to the element, until released or until the host ends the
	// pointer session.
	SetPointerCapture(pointerID int)
	// ReleasePointerCapture stops the routing. It is a no-op
	// when the element does not hold the capture.
	ReleasePointerCapture(pointerID int)
}

// Directory resolves element identifiers.
type Directory interface {
	ElementByID(id string) (Element, bool)
}

// Scene is an element which is also the root of a vector graphics subtree.
type Scene interface {
	Element
	// Tag returns the local name of the root node, "svg" for a vector scene.
	Tag() string
}

// Serializer turns a scene into self-contained text.
type Serializer interface {
	Serialize(s Scene) ([]byte, error)
}

// Blob is an immutable chunk of bytes tagged with a media type.
type Blob struct {
	Data []byte
	Type string
}

// Handle is a short-lived, document-scoped reference to a blob.
type Handle string

// BlobRegistry allocates and revokes blob handles.
type BlobRegistry interface {
	CreateObjectURL(b Blob) Handle
	// RevokeObjectURL releases the handle. Revoking an unknown
	// or already revoked handle is a no-op.
	RevokeObjectURL(h Handle)
	Resolve(h Handle) (Blob, bool)
}

// ImageSource describes the image to decode: the data
// behind Src, laid out at the given pixel size.
type ImageSource struct {
	Src           Handle
	Width, Height int
}

// ImageDecoder decodes an image source. Decode blocks
// until the image is fully decoded or failed.
type ImageDecoder interface {
	Decode(src ImageSource) (image.Image, error)
}

// Canvas is an offscreen 2D raster surface.
type Canvas interface {
	Width() int
	Height() int
	// DrawImage draws img with its top-left corner at (x, y), without scaling.
	DrawImage(img image.Image, x, y int)
	EncodePNG(w io.Writer) error
	Close() error
}

// CanvasFactory creates fresh canvases.
type CanvasFactory interface {
	NewCanvas(width, height int) Canvas
}

// Link is a detached hyperlink, used to trigger downloads.
type Link struct {
	Href     string
	Download string // suggested file name
}

// Downloader performs the primary activation of a link.
type Downloader interface {
	Click(l Link) error
}
