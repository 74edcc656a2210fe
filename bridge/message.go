package bridge

import (
	"errors"
	"fmt"

	"github.com/segmentio/encoding/json"
)

// Port names, as declared by the UI runtime.
const (
	PortSetCapture       = "pointerSetCaptureById"
	PortReleaseCapture   = "pointerReleaseCaptureById"
	PortDownloadSvgAsPng = "downloadSvgAsPng"
)

var (
	ErrUnknownPort    = errors.New("bridge: unknown port")
	ErrInvalidMessage = errors.New("bridge: invalid message")
)

// Message is one request received on a port.
// It is one of *SetCapture, *ReleaseCapture or *DownloadSvgAsPng.
type Message interface {
	Port() string
	// Validate checks the payload, before any dispatch.
	Validate() error
}

// CaptureRequest is the payload of the capture ports.
type CaptureRequest struct {
	ElementID string `json:"elementId"`
	PointerID int    `json:"pointerId"`
}

func (c CaptureRequest) validate(port string) error {
	if c.ElementID == "" {
		return fmt.Errorf("%w: %s: empty elementId", ErrInvalidMessage, port)
	}
	return nil
}

// SetCapture is received on PortSetCapture.
type SetCapture struct{ CaptureRequest }

func (*SetCapture) Port() string      { return PortSetCapture }
func (m *SetCapture) Validate() error { return m.validate(PortSetCapture) }

// ReleaseCapture is received on PortReleaseCapture.
type ReleaseCapture struct{ CaptureRequest }

func (*ReleaseCapture) Port() string      { return PortReleaseCapture }
func (m *ReleaseCapture) Validate() error { return m.validate(PortReleaseCapture) }

// MaxDimension bounds each side of a requested size,
// as hosts bound canvas dimensions.
const MaxDimension = 32767

// Size is the requested raster size, in pixels.
// Fractional values are truncated, as canvas dimensions are.
type Size struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pixels returns the integer dimensions. Sizes are
// checked against MaxDimension first, by Validate.
func (s Size) Pixels() (width, height int) { return int(s.X), int(s.Y) }

// DownloadSvgAsPng asks for the export of the vector
// element ElementID, under the name Filename + ".png".
type DownloadSvgAsPng struct {
	ElementID string `json:"elementId"`
	Filename  string `json:"filename"`
	Size      Size   `json:"size"`
}

func (*DownloadSvgAsPng) Port() string { return PortDownloadSvgAsPng }

func (m *DownloadSvgAsPng) Validate() error {
	if m.ElementID == "" {
		return fmt.Errorf("%w: %s: empty elementId", ErrInvalidMessage, PortDownloadSvgAsPng)
	}
	if m.Filename == "" {
		return fmt.Errorf("%w: %s: empty filename", ErrInvalidMessage, PortDownloadSvgAsPng)
	}
	if m.Size.X > MaxDimension || m.Size.Y > MaxDimension {
		return fmt.Errorf("%w: %s: size %gx%g above %d", ErrInvalidMessage, PortDownloadSvgAsPng, m.Size.X, m.Size.Y, MaxDimension)
	}
	if w, h := m.Size.Pixels(); w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %s: invalid size %gx%g", ErrInvalidMessage, PortDownloadSvgAsPng, m.Size.X, m.Size.Y)
	}
	return nil
}

// Decode parses and validates the JSON payload received on port.
func Decode(port string, payload []byte) (Message, error) {
	var msg Message
	switch port {
	case PortSetCapture:
		msg = new(SetCapture)
	case PortReleaseCapture:
		msg = new(ReleaseCapture)
	case PortDownloadSvgAsPng:
		msg = new(DownloadSvgAsPng)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPort, port)
	}
	if err := json.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidMessage, port, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}
