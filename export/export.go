// Implements the export of a vector scene as a downloadable PNG file.
//
// The pipeline serializes the scene, registers it as a temporary
// blob handle, waits for the asynchronous decoding of that handle,
// then draws the decoded image on a fresh canvas and triggers
// the download of its PNG encoding. The handle is revoked exactly
// once, after the decoding resolved, whatever its outcome.
package export

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/benoitkugler/svgbridge/host"
	"go.uber.org/zap"
)

// Extension is appended to every download file name.
const Extension = ".png"

// ErrTooLarge is returned by Start for sizes above the pixel limit.
var ErrTooLarge = errors.New("export: requested size too large")

// Request describes one export. Scene is only borrowed
// for the duration of the serialization.
type Request struct {
	Scene         host.Scene
	Filename      string // without extension
	Width, Height int
}

// DecodeError is returned when the serialized scene can't be decoded.
type DecodeError struct {
	Src host.Handle
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("export: decoding %s: %s", e.Src, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Host gathers the host capabilities the pipeline relies on.
type Host struct {
	Serializer host.Serializer
	Blobs      host.BlobRegistry
	Decoder    host.ImageDecoder
	Canvases   host.CanvasFactory
	Downloader host.Downloader
}

// Pipeline is stateless: concurrent exports are independent.
type Pipeline struct {
	host Host
	log  *zap.Logger

	// MaxPixels bounds Width * Height of a request.
	MaxPixels int
}

// NewPipeline uses a no-op logger if log is nil.
// The size limit is host.DefaultMaxPixels.
func NewPipeline(h Host, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{host: h, log: log, MaxPixels: host.DefaultMaxPixels}
}

// decodeTask is the asynchronous decoding of one image source,
// with a single resolution point.
type decodeTask struct {
	done chan struct{}
	img  image.Image
	err  error
}

func startDecode(dec host.ImageDecoder, src host.ImageSource) *decodeTask {
	task := &decodeTask{done: make(chan struct{})}
	go func() {
		defer close(task.done)
		defer func() {
			if r := recover(); r != nil {
				task.img, task.err = nil, fmt.Errorf("decoder panicked: %v", r)
			}
		}()
		task.img, task.err = dec.Decode(src)
	}()
	return task
}

// wait blocks until the decoding resolved. There is no way to abort it.
func (t *decodeTask) wait() (image.Image, error) {
	<-t.done
	return t.img, t.err
}

// Job is an export suspended on the decoding of its scene.
type Job struct {
	p      *Pipeline
	req    Request
	handle host.Handle
	task   *decodeTask
	log    *zap.Logger

	once sync.Once
	err  error
}

// Start runs the synchronous part of the export: the scene is
// serialized, registered as a blob and its decoding is started.
// Once Start returns, the scene is not used anymore.
func (p *Pipeline) Start(req Request) (*Job, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("export: invalid size %dx%d", req.Width, req.Height)
	}
	if !host.FitsPixels(req.Width, req.Height, 1, p.MaxPixels) {
		p.log.Warn("export too large", zap.String("filename", req.Filename),
			zap.Int("width", req.Width), zap.Int("height", req.Height), zap.Int("max_pixels", p.MaxPixels))
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, req.Width, req.Height, p.MaxPixels)
	}
	log := p.log.With(zap.String("filename", req.Filename),
		zap.Int("width", req.Width), zap.Int("height", req.Height))

	text, err := p.host.Serializer.Serialize(req.Scene)
	if err != nil {
		log.Warn("scene serialization failed", zap.Error(err))
		return nil, fmt.Errorf("export: serializing scene: %w", err)
	}

	handle := p.host.Blobs.CreateObjectURL(host.Blob{Data: text, Type: host.SVGMediaType})
	task := startDecode(p.host.Decoder, host.ImageSource{Src: handle, Width: req.Width, Height: req.Height})
	req.Scene = nil
	return &Job{p: p, req: req, handle: handle, task: task, log: log}, nil
}

// Wait resumes the export once the decoding resolved, and returns
// its outcome. A nil error means the download has been triggered.
// Calling Wait again returns the same outcome.
func (j *Job) Wait() error {
	j.once.Do(func() { j.err = j.finish() })
	return j.err
}

func (j *Job) finish() error {
	h := j.p.host
	img, err := j.task.wait()
	// the image is decoded (or failed): the handle is not needed anymore
	h.Blobs.RevokeObjectURL(j.handle)
	if err != nil {
		j.log.Warn("scene decoding failed", zap.String("handle", string(j.handle)), zap.Error(err))
		return &DecodeError{Src: j.handle, Err: err}
	}

	canvas := h.Canvases.NewCanvas(j.req.Width, j.req.Height)
	defer canvas.Close()
	canvas.DrawImage(img, 0, 0)

	href, err := dataURL(canvas)
	if err != nil {
		j.log.Warn("raster encoding failed", zap.Error(err))
		return fmt.Errorf("export: encoding raster: %w", err)
	}

	link := host.Link{Href: href, Download: j.req.Filename + Extension}
	if err := h.Downloader.Click(link); err != nil {
		j.log.Warn("download failed", zap.String("download", link.Download), zap.Error(err))
		return fmt.Errorf("export: triggering download: %w", err)
	}
	j.log.Info("download triggered", zap.String("download", link.Download))
	return nil
}

// Export runs the whole pipeline and waits for its completion.
func (p *Pipeline) Export(req Request) error {
	job, err := p.Start(req)
	if err != nil {
		return err
	}
	return job.Wait()
}

// dataURL encodes the canvas as PNG, tagged with the generic binary
// media type so that the host downloads it instead of displaying it.
func dataURL(c host.Canvas) (string, error) {
	var buf bytes.Buffer
	if err := c.EncodePNG(&buf); err != nil {
		return "", err
	}
	return "data:" + host.BinaryMediaType + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
