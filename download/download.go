// Implements download triggering for a headless host:
// clicked links are decoded and written to a directory,
// or simply recorded.
package download

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/benoitkugler/svgbridge/host"
	"go.uber.org/zap"
)

var (
	_ host.Downloader = (*DirSink)(nil)
	_ host.Downloader = (*Recorder)(nil)
)

var errNotDataURL = errors.New("download: not a data URL")

// ParseDataURL decodes a "data:" URL (RFC 2397).
// The media type defaults to "text/plain;charset=US-ASCII".
func ParseDataURL(href string) (mediaType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(href, "data:")
	if !ok {
		return "", nil, errNotDataURL
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("download: malformed data URL: missing comma")
	}
	isBase64 := false
	if h, found := strings.CutSuffix(header, ";base64"); found {
		header, isBase64 = h, true
	}
	mediaType = header
	if mediaType == "" {
		mediaType = "text/plain;charset=US-ASCII"
	}
	if isBase64 {
		data, err = base64.StdEncoding.DecodeString(payload)
	} else {
		var s string
		s, err = url.PathUnescape(payload)
		data = []byte(s)
	}
	if err != nil {
		return "", nil, fmt.Errorf("download: malformed data URL: %w", err)
	}
	return mediaType, data, nil
}

// DirSink saves downloads in a directory.
// A file with the same name is replaced.
type DirSink struct {
	Dir string
	log *zap.Logger

	mu sync.Mutex // serializes writes of concurrent exports
}

// NewDirSink uses a no-op logger if log is nil.
func NewDirSink(dir string, log *zap.Logger) *DirSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &DirSink{Dir: dir, log: log}
}

// Click implements host.Downloader. Only data URLs are supported,
// and the suggested name must be a plain file name.
func (s *DirSink) Click(l host.Link) error {
	name := l.Download
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("download: invalid file name %q", name)
	}
	_, data, err := ParseDataURL(l.Href)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	s.log.Debug("file saved", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

// Recorder keeps the clicked links in memory.
type Recorder struct {
	mu    sync.Mutex
	links []host.Link
}

// Click records l.
func (r *Recorder) Click(l host.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links = append(r.links, l)
	return nil
}

// Links returns a copy of the recorded links, in click order.
func (r *Recorder) Links() []host.Link {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]host.Link(nil), r.links...)
}
