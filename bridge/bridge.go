// Implements the message ports between the UI runtime and the host:
// payloads are decoded into typed messages, validated, then routed
// to the pointer capture delegate or the export pipeline.
//
// The ports are fire-and-forget: failures are logged and the
// request is dropped. Dispatch still returns them, for callers
// interested in the outcome.
package bridge

import (
	"sync"

	"github.com/benoitkugler/svgbridge/capture"
	"github.com/benoitkugler/svgbridge/export"
	"github.com/benoitkugler/svgbridge/host"
	"go.uber.org/zap"
)

// Bridge routes messages. Exports run in their own goroutine
// once their scene is serialized; Wait blocks until they end.
type Bridge struct {
	dir      host.Directory
	capture  *capture.Delegate
	pipeline *export.Pipeline
	log      *zap.Logger

	inflight sync.WaitGroup
}

// New uses a no-op logger if log is nil.
func New(dir host.Directory, pipeline *export.Pipeline, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{
		dir:      dir,
		capture:  capture.NewDelegate(dir, log),
		pipeline: pipeline,
		log:      log,
	}
}

// Ports returns the port names the bridge subscribes to.
func Ports() []string {
	return []string{PortSetCapture, PortReleaseCapture, PortDownloadSvgAsPng}
}

// Dispatch decodes the payload received on port and handles it.
func (b *Bridge) Dispatch(port string, payload []byte) error {
	msg, err := Decode(port, payload)
	if err != nil {
		b.log.Warn("message rejected", zap.String("port", port), zap.Error(err))
		return err
	}
	return b.Handle(msg)
}

// Handle routes a validated message. For downloads, a nil
// error only means the export has been started.
func (b *Bridge) Handle(msg Message) error {
	b.log.Debug("message received", zap.String("port", msg.Port()))
	switch m := msg.(type) {
	case *SetCapture:
		return b.capture.Acquire(m.ElementID, m.PointerID)
	case *ReleaseCapture:
		return b.capture.Release(m.ElementID, m.PointerID)
	case *DownloadSvgAsPng:
		return b.download(m)
	default:
		return ErrUnknownPort
	}
}

func (b *Bridge) download(m *DownloadSvgAsPng) error {
	el, ok := b.dir.ElementByID(m.ElementID)
	scene, isScene := el.(host.Scene)
	if !ok || !isScene || scene.Tag() != "svg" {
		b.log.Warn("vector scene not found", zap.String("element", m.ElementID))
		return &capture.LookupError{ElementID: m.ElementID}
	}
	w, h := m.Size.Pixels()
	job, err := b.pipeline.Start(export.Request{Scene: scene, Filename: m.Filename, Width: w, Height: h})
	if err != nil {
		return err
	}
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		_ = job.Wait() // logged by the pipeline
	}()
	return nil
}

// Wait blocks until every started export completed.
func (b *Bridge) Wait() { b.inflight.Wait() }
