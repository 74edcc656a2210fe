// Implements a document-scoped registry of blobs,
// handing out "blob:" URLs as temporary handles.
package blob

import (
	"sync"

	"github.com/benoitkugler/svgbridge/host"
	"github.com/google/uuid"
)

var _ host.BlobRegistry = (*Registry)(nil)

// DefaultOrigin is used when no origin is given to NewRegistry.
const DefaultOrigin = "null"

// Stats counts the handles created and revoked over the registry lifetime.
type Stats struct {
	Allocated int
	Revoked   int
}

// Registry is safe for concurrent use.
type Registry struct {
	origin string

	mu    sync.Mutex
	blobs map[host.Handle]host.Blob
	stats Stats
}

// NewRegistry returns an empty registry whose handles
// are prefixed by `origin`.
func NewRegistry(origin string) *Registry {
	if origin == "" {
		origin = DefaultOrigin
	}
	return &Registry{origin: origin, blobs: make(map[host.Handle]host.Blob)}
}

// CreateObjectURL registers b and returns a fresh handle.
func (r *Registry) CreateObjectURL(b host.Blob) host.Handle {
	h := host.Handle("blob:" + r.origin + "/" + uuid.NewString())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[h] = b
	r.stats.Allocated++
	return h
}

// RevokeObjectURL forgets the handle. Unknown handles are ignored.
func (r *Registry) RevokeObjectURL(h host.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blobs[h]; !ok {
		return
	}
	delete(r.blobs, h)
	r.stats.Revoked++
}

// Resolve returns the blob behind a live handle.
func (r *Registry) Resolve(h host.Handle) (host.Blob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blobs[h]
	return b, ok
}

// Live returns the number of handles not yet revoked.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.blobs)
}

// Stats returns the counters. Ignored revocations are not counted.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
