package trace

import (
	"bufio"
	"io"
	"os"
	"sync"
)

// StreamTracer writes each accepted event to a writer. Output to anything
// but the standard streams is buffered until Flush or Close.
type StreamTracer struct {
	mu     sync.Mutex
	dst    io.Writer
	buf    *bufio.Writer // nil for stdout/stderr
	level  Level
	format Format
}

// NewStreamTracer creates a tracer writing to w.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	if format == FormatAuto {
		format = FormatText
	}
	t := &StreamTracer{dst: w, level: level, format: format}
	if w != os.Stderr && w != os.Stdout {
		t.buf = bufio.NewWriter(w)
	}
	return t
}

func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}
	line := *ev
	line.Seq = NextSeq()
	data := FormatEvent(&line, t.format)

	t.mu.Lock()
	defer t.mu.Unlock()
	// Write errors are dropped; a broken trace sink must not fail an evaluation.
	if t.buf != nil {
		_, _ = t.buf.Write(data)
		return
	}
	_, _ = t.dst.Write(data)
}

func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushLocked()
}

func (t *StreamTracer) flushLocked() error {
	if t.buf == nil {
		return nil
	}
	return t.buf.Flush()
}

// Close flushes and closes the writer when it is an io.Closer other than
// the standard streams.
func (t *StreamTracer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.flushLocked(); err != nil {
		return err
	}
	if t.buf == nil {
		return nil
	}
	if c, ok := t.dst.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
