package bridge

import (
	"bufio"
	"fmt"
	"io"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
)

// Envelope is the line format read by Serve: one message
// per line, tagged with the port it is sent on.
type Envelope struct {
	Port    string          `json:"port"`
	Payload json.RawMessage `json:"payload"`
}

// maxLine bounds the size of one envelope.
const maxLine = 1 << 20

// Serve dispatches every envelope read from r, until EOF, then waits
// for the exports in flight. Malformed lines and failed messages are
// logged and skipped; only read errors are returned.
// It returns the number of messages dispatched without error.
func (b *Bridge) Serve(r io.Reader) (int, error) {
	defer b.Wait()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	var ok, line int
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(text, &env); err != nil {
			b.log.Warn("malformed envelope", zap.Int("line", line), zap.Error(err))
			continue
		}
		if err := b.Dispatch(env.Port, env.Payload); err != nil {
			b.log.Debug("message dropped", zap.Int("line", line), zap.Error(err))
			continue
		}
		ok++
	}
	if err := scanner.Err(); err != nil {
		return ok, fmt.Errorf("bridge: reading messages: %w", err)
	}
	return ok, nil
}
