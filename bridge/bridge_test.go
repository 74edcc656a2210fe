package bridge

import (
	"errors"
	"strings"
	"testing"

	"github.com/benoitkugler/svgbridge/blob"
	"github.com/benoitkugler/svgbridge/capture"
	"github.com/benoitkugler/svgbridge/download"
	"github.com/benoitkugler/svgbridge/export"
	"github.com/benoitkugler/svgbridge/host"
	"github.com/benoitkugler/svgbridge/raster"
	"github.com/benoitkugler/svgbridge/svgdom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDecode(t *testing.T) {
	msg, err := Decode(PortSetCapture, []byte(`{"elementId":"ruler","pointerId":7}`))
	require.NoError(t, err)
	assert.Equal(t, &SetCapture{CaptureRequest{ElementID: "ruler", PointerID: 7}}, msg)

	msg, err = Decode(PortReleaseCapture, []byte(`{"elementId":"ruler","pointerId":7}`))
	require.NoError(t, err)
	assert.Equal(t, PortReleaseCapture, msg.Port())

	msg, err = Decode(PortDownloadSvgAsPng, []byte(`{"elementId":"chart","filename":"chart","size":{"x":200.9,"y":100}}`))
	require.NoError(t, err)
	dl := msg.(*DownloadSvgAsPng)
	w, h := dl.Size.Pixels()
	assert.Equal(t, 200, w)
	assert.Equal(t, 100, h)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode("canvasRulerPressed", []byte(`{}`))
	assert.True(t, errors.Is(err, ErrUnknownPort))

	for _, c := range []struct{ port, payload string }{
		{PortSetCapture, `{"elementId":"","pointerId":1}`},
		{PortSetCapture, `{"pointerId":1}`},
		{PortReleaseCapture, `not json`},
		{PortReleaseCapture, `{"elementId":"a","pointerId":"1"}`},
		{PortDownloadSvgAsPng, `{"elementId":"chart","filename":"chart","size":{"x":0,"y":100}}`},
		{PortDownloadSvgAsPng, `{"elementId":"chart","filename":"chart","size":{"x":10,"y":0.5}}`},
		{PortDownloadSvgAsPng, `{"elementId":"chart","filename":"","size":{"x":10,"y":10}}`},
		{PortDownloadSvgAsPng, `{"filename":"chart","size":{"x":10,"y":10}}`},
		{PortDownloadSvgAsPng, `{"elementId":"chart","filename":"chart","size":{"x":2147483648,"y":2147483648}}`},
		{PortDownloadSvgAsPng, `{"elementId":"chart","filename":"chart","size":{"x":10,"y":1e300}}`},
	} {
		_, err := Decode(c.port, []byte(c.payload))
		assert.True(t, errors.Is(err, ErrInvalidMessage), "%s %s: %v", c.port, c.payload, err)
	}
}

const document = `<svg xmlns="http://www.w3.org/2000/svg" id="root">
  <g id="ruler"><rect width="10" height="10"/></g>
  <svg id="chart" viewBox="0 0 20 10"><rect width="20" height="10" fill="#ff0000"/></svg>
</svg>`

type fixture struct {
	doc    *svgdom.Document
	reg    *blob.Registry
	dl     *download.Recorder
	logs   *observer.ObservedLogs
	bridge *Bridge
}

func newFixture(t *testing.T, dir host.Directory) *fixture {
	doc, err := svgdom.Parse(strings.NewReader(document))
	require.NoError(t, err)
	if dir == nil {
		dir = doc
	}
	f := &fixture{doc: doc, reg: blob.NewRegistry(""), dl: new(download.Recorder)}
	core, logs := observer.New(zapcore.DebugLevel)
	f.logs = logs
	log := zap.New(core)
	pipeline := export.NewPipeline(export.Host{
		Serializer: svgdom.XMLSerializer{},
		Blobs:      f.reg,
		Decoder:    raster.NewDecoder(f.reg),
		Canvases:   raster.Canvases{},
		Downloader: f.dl,
	}, log)
	f.bridge = New(dir, pipeline, log)
	return f
}

func TestDispatchCapture(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.bridge.Dispatch(PortSetCapture, []byte(`{"elementId":"ruler","pointerId":2}`)))
	target, ok := f.doc.CaptureTarget(2)
	require.True(t, ok)
	assert.Equal(t, "ruler", target.ID())

	require.NoError(t, f.bridge.Dispatch(PortReleaseCapture, []byte(`{"elementId":"ruler","pointerId":2}`)))
	require.NoError(t, f.bridge.Dispatch(PortReleaseCapture, []byte(`{"elementId":"ruler","pointerId":2}`)))
	_, ok = f.doc.CaptureTarget(2)
	assert.False(t, ok)

	err := f.bridge.Dispatch(PortSetCapture, []byte(`{"elementId":"missingEl","pointerId":7}`))
	var lookup *capture.LookupError
	require.True(t, errors.As(err, &lookup))
	_, ok = f.doc.CaptureTarget(7)
	assert.False(t, ok)
}

func TestDispatchDownload(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.bridge.Dispatch(PortDownloadSvgAsPng,
		[]byte(`{"elementId":"chart","filename":"chart","size":{"x":200,"y":100}}`)))
	f.bridge.Wait()

	links := f.dl.Links()
	require.Len(t, links, 1)
	assert.Equal(t, "chart.png", links[0].Download)
	assert.Equal(t, blob.Stats{Allocated: 1, Revoked: 1}, f.reg.Stats())
}

func TestDispatchDownloadMissing(t *testing.T) {
	f := newFixture(t, nil)

	err := f.bridge.Dispatch(PortDownloadSvgAsPng,
		[]byte(`{"elementId":"nope","filename":"chart","size":{"x":200,"y":100}}`))
	var lookup *capture.LookupError
	require.True(t, errors.As(err, &lookup))
	f.bridge.Wait()

	assert.Empty(t, f.dl.Links())
	assert.Equal(t, blob.Stats{}, f.reg.Stats())
	assert.Equal(t, 1, f.logs.FilterMessage("vector scene not found").Len())
}

func TestDispatchDownloadNotSVG(t *testing.T) {
	f := newFixture(t, nil)

	// ruler is a <g> element of the document
	err := f.bridge.Dispatch(PortDownloadSvgAsPng,
		[]byte(`{"elementId":"ruler","filename":"ruler","size":{"x":20,"y":20}}`))
	var lookup *capture.LookupError
	require.True(t, errors.As(err, &lookup))
	f.bridge.Wait()

	assert.Empty(t, f.dl.Links())
	assert.Equal(t, blob.Stats{}, f.reg.Stats())
	assert.Equal(t, 1, f.logs.FilterMessage("vector scene not found").Len())
}

func TestDispatchDownloadTooLarge(t *testing.T) {
	f := newFixture(t, nil)

	err := f.bridge.Dispatch(PortDownloadSvgAsPng,
		[]byte(`{"elementId":"chart","filename":"chart","size":{"x":2147483648,"y":2147483648}}`))
	assert.True(t, errors.Is(err, ErrInvalidMessage))

	// each side is acceptable, not the pixel count
	err = f.bridge.Dispatch(PortDownloadSvgAsPng,
		[]byte(`{"elementId":"chart","filename":"chart","size":{"x":30000,"y":30000}}`))
	assert.True(t, errors.Is(err, export.ErrTooLarge))
	f.bridge.Wait()

	assert.Empty(t, f.dl.Links())
	assert.Equal(t, blob.Stats{}, f.reg.Stats())
}

// plainDirectory holds elements which are not vector scenes
type plainDirectory struct{}

type plainElement struct{}

func (plainElement) ID() string                { return "button" }
func (plainElement) SetPointerCapture(int)     {}
func (plainElement) ReleasePointerCapture(int) {}

func (plainDirectory) ElementByID(id string) (host.Element, bool) {
	return plainElement{}, id == "button"
}

func TestDispatchDownloadNotAScene(t *testing.T) {
	f := newFixture(t, plainDirectory{})

	err := f.bridge.Dispatch(PortDownloadSvgAsPng,
		[]byte(`{"elementId":"button","filename":"chart","size":{"x":200,"y":100}}`))
	var lookup *capture.LookupError
	require.True(t, errors.As(err, &lookup))

	// capture still works on plain elements
	require.NoError(t, f.bridge.Dispatch(PortSetCapture, []byte(`{"elementId":"button","pointerId":1}`)))
}

func TestDispatchRejected(t *testing.T) {
	f := newFixture(t, nil)
	err := f.bridge.Dispatch("unknownPort", []byte(`{}`))
	assert.True(t, errors.Is(err, ErrUnknownPort))
	assert.Equal(t, 1, f.logs.FilterMessage("message rejected").Len())
}

func TestPorts(t *testing.T) {
	assert.ElementsMatch(t, []string{"pointerSetCaptureById", "pointerReleaseCaptureById", "downloadSvgAsPng"}, Ports())
}

func TestServe(t *testing.T) {
	f := newFixture(t, nil)
	input := strings.Join([]string{
		`{"port":"pointerSetCaptureById","payload":{"elementId":"ruler","pointerId":1}}`,
		``,
		`garbage`,
		`{"port":"pointerSetCaptureById","payload":{"elementId":"missingEl","pointerId":7}}`,
		`{"port":"downloadSvgAsPng","payload":{"elementId":"chart","filename":"a","size":{"x":20,"y":10}}}`,
		`{"port":"downloadSvgAsPng","payload":{"elementId":"chart","filename":"b","size":{"x":40,"y":20}}}`,
	}, "\n")

	n, err := f.bridge.Serve(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Serve waited for the exports
	var names []string
	for _, l := range f.dl.Links() {
		names = append(names, l.Download)
	}
	assert.ElementsMatch(t, []string{"a.png", "b.png"}, names)
	assert.Equal(t, 0, f.reg.Live())
	assert.Equal(t, 1, f.logs.FilterMessage("malformed envelope").Len())
}
