// Package console holds the output shared between the execution host and the
// code it runs.
//
// A [Console] is reset to a blank baseline before every run. Each reset starts
// a new generation, and a [Writer] only accepts output while its generation is
// current, so output from a run that has been stopped never mixes with the
// next run's output.
package console

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"unicode/utf8"
)

// ClearSequence moves the cursor home and clears an ANSI terminal.
const ClearSequence = "\x1b[H\x1b[2J"

// DefaultMaxBuffer is the number of trailing output bytes kept in memory.
const DefaultMaxBuffer = 1 << 20

// Option configures a Console.
type Option func(*Console)

// WithANSI enables writing ClearSequence to the sink on reset and clear.
func WithANSI(enabled bool) Option {
	return func(c *Console) {
		c.ansi = enabled
	}
}

// WithMaxBuffer bounds the in-memory output. Values <= 0 keep the default.
func WithMaxBuffer(n int) Option {
	return func(c *Console) {
		if n > 0 {
			c.max = n
		}
	}
}

// Console is an in-memory output buffer with an optional pass-through sink.
type Console struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	sink io.Writer
	gen  uint64
	ansi bool
	max  int
}

// New creates a console. sink may be nil.
func New(sink io.Writer, opts ...Option) *Console {
	c := &Console{sink: sink, max: DefaultMaxBuffer}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reset returns the console to its baseline and returns a writer for the new
// generation. Writers from earlier generations become inert.
func (c *Console) Reset() *Writer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.clearLocked()
	return &Writer{c: c, gen: c.gen}
}

// Generation returns the current generation.
func (c *Console) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// String returns the output written since the last reset or clear.
func (c *Console) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func (c *Console) clearLocked() {
	c.buf.Reset()
	if c.ansi && c.sink != nil {
		_, _ = io.WriteString(c.sink, ClearSequence)
	}
}

func (c *Console) write(gen uint64, p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return len(p), nil
	}
	c.buf.Write(p)
	if over := c.buf.Len() - c.max; over > 0 {
		c.buf.Next(over)
		// Never start the retained text inside a character.
		for i := 0; i < utf8.UTFMax-1 && c.buf.Len() > 0 && !utf8.RuneStart(c.buf.Bytes()[0]); i++ {
			c.buf.Next(1)
		}
	}
	if c.sink != nil {
		if _, err := c.sink.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (c *Console) clear(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}
	c.clearLocked()
}

// Writer writes into one generation of a Console.
type Writer struct {
	c   *Console
	gen uint64
}

// Write implements io.Writer. Writes to a stale generation are discarded.
func (w *Writer) Write(p []byte) (int, error) {
	if w == nil || w.c == nil {
		return len(p), nil
	}
	return w.c.write(w.gen, p)
}

// Clear clears the console if this writer's generation is still current.
func (w *Writer) Clear() {
	if w == nil || w.c == nil {
		return
	}
	w.c.clear(w.gen)
}

// Print formats like fmt.Print.
func (w *Writer) Print(args ...any) {
	_, _ = fmt.Fprint(w, args...)
}

// Println formats like fmt.Println.
func (w *Writer) Println(args ...any) {
	_, _ = fmt.Fprintln(w, args...)
}

// Revoke makes this writer and any copy of it inert without clearing the
// buffer. It has no effect once the console has moved to a later generation.
func (w *Writer) Revoke() {
	if w == nil || w.c == nil {
		return
	}
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	if w.c.gen == w.gen {
		w.c.gen++
	}
}

// Stale reports whether the console has moved past this writer's generation.
func (w *Writer) Stale() bool {
	if w == nil || w.c == nil {
		return true
	}
	return w.c.Generation() != w.gen
}

type key struct{}

// WithWriter returns a context carrying w.
func WithWriter(ctx context.Context, w *Writer) context.Context {
	return context.WithValue(ctx, key{}, w)
}

// FromContext returns the writer carried by ctx, or a writer that discards
// everything.
func FromContext(ctx context.Context) *Writer {
	if w, ok := ctx.Value(key{}).(*Writer); ok && w != nil {
		return w
	}
	return &Writer{}
}
