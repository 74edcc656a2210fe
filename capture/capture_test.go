package capture

import (
	"errors"
	"strings"
	"testing"

	"github.com/benoitkugler/svgbridge/host"
	"github.com/benoitkugler/svgbridge/svgdom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type call struct {
	op        string
	pointerID int
}

type fakeElement struct {
	id    string
	calls []call
}

func (e *fakeElement) ID() string { return e.id }

func (e *fakeElement) SetPointerCapture(pointerID int) {
	e.calls = append(e.calls, call{"set", pointerID})
}

func (e *fakeElement) ReleasePointerCapture(pointerID int) {
	e.calls = append(e.calls, call{"release", pointerID})
}

type fakeDirectory map[string]*fakeElement

func (d fakeDirectory) ElementByID(id string) (host.Element, bool) {
	el, ok := d[id]
	if !ok {
		return nil, false
	}
	return el, true
}

func TestAcquireRelease(t *testing.T) {
	el := &fakeElement{id: "canvas"}
	d := NewDelegate(fakeDirectory{"canvas": el}, nil)

	require.NoError(t, d.Acquire("canvas", 3))
	assert.Equal(t, []call{{"set", 3}}, el.calls)

	require.NoError(t, d.Release("canvas", 3))
	assert.Equal(t, []call{{"set", 3}, {"release", 3}}, el.calls)
}

func TestReleaseIsIdempotent(t *testing.T) {
	el := &fakeElement{id: "canvas"}
	d := NewDelegate(fakeDirectory{"canvas": el}, nil)

	// no prior acquire, then release twice: one host call each time
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Release("canvas", 1))
	}
	assert.Equal(t, []call{{"release", 1}, {"release", 1}, {"release", 1}}, el.calls)
}

func TestMissingElement(t *testing.T) {
	el := &fakeElement{id: "canvas"}
	core, logs := observer.New(zapcore.WarnLevel)
	d := NewDelegate(fakeDirectory{"canvas": el}, zap.New(core))

	err := d.Acquire("missingEl", 7)
	var lookup *LookupError
	require.True(t, errors.As(err, &lookup))
	assert.Equal(t, "missingEl", lookup.ElementID)

	err = d.Release("missingEl", 7)
	require.True(t, errors.As(err, &lookup))

	assert.Empty(t, el.calls)
	require.Equal(t, 2, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "missingEl", entry.ContextMap()["element"])
	assert.EqualValues(t, 7, entry.ContextMap()["pointer"])
	assert.Equal(t, "acquire", entry.ContextMap()["op"])
}

func TestWithDocument(t *testing.T) {
	doc, err := svgdom.Parse(strings.NewReader(`<svg id="root"><rect id="handle"/></svg>`))
	require.NoError(t, err)
	d := NewDelegate(doc, nil)

	require.NoError(t, d.Acquire("handle", 1))
	target, ok := doc.CaptureTarget(1)
	require.True(t, ok)
	assert.Equal(t, "handle", target.ID())

	require.NoError(t, d.Release("root", 1)) // not the owner
	_, ok = doc.CaptureTarget(1)
	assert.True(t, ok)

	require.NoError(t, d.Release("handle", 1))
	_, ok = doc.CaptureTarget(1)
	assert.False(t, ok)
}
