// Implements the delegation of pointer capture requests
// to the elements of the host document.
package capture

import (
	"fmt"

	"github.com/benoitkugler/svgbridge/host"
	"go.uber.org/zap"
)

// LookupError is returned when an element identifier
// does not resolve in the host directory.
type LookupError struct {
	ElementID string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("capture: no element with id %q", e.ElementID)
}

// Delegate forwards capture requests to the host.
// It keeps no state between calls.
type Delegate struct {
	dir host.Directory
	log *zap.Logger
}

// NewDelegate uses a no-op logger if log is nil.
func NewDelegate(dir host.Directory, log *zap.Logger) *Delegate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Delegate{dir: dir, log: log}
}

func (d *Delegate) resolve(op, elementID string, pointerID int) (host.Element, error) {
	el, ok := d.dir.ElementByID(elementID)
	if !ok {
		d.log.Warn("pointer capture target not found",
			zap.String("op", op),
			zap.String("element", elementID),
			zap.Int("pointer", pointerID))
		return nil, &LookupError{ElementID: elementID}
	}
	return el, nil
}

// Acquire routes every further event of the pointer to the element,
// until Release or the end of the pointer session.
func (d *Delegate) Acquire(elementID string, pointerID int) error {
	el, err := d.resolve("acquire", elementID, pointerID)
	if err != nil {
		return err
	}
	el.SetPointerCapture(pointerID)
	d.log.Debug("pointer captured", zap.String("element", elementID), zap.Int("pointer", pointerID))
	return nil
}

// Release stops the routing. Releasing a pointer which
// is not captured is accepted.
func (d *Delegate) Release(elementID string, pointerID int) error {
	el, err := d.resolve("release", elementID, pointerID)
	if err != nil {
		return err
	}
	el.ReleasePointerCapture(pointerID)
	d.log.Debug("pointer released", zap.String("element", elementID), zap.Int("pointer", pointerID))
	return nil
}
