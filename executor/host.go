package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/caffeineduck/hotrun/console"
	"github.com/caffeineduck/hotrun/internal/ctxlog"
)

// State of an execution handle.
type State int32

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Handle tracks one run of an entry point. Its state only moves forward:
// Idle, Running, Stopped.
type Handle struct {
	id    uint64
	entry *EntryPoint

	cancel context.CancelCauseFunc
	out    *console.Writer
	exited chan struct{} // closed when the execution goroutine returns

	mu       sync.Mutex
	state    State
	err      error
	stopped  chan struct{}
	started  time.Time
	finished time.Time
}

func newHandle(id uint64, entry *EntryPoint) *Handle {
	return &Handle{
		id:      id,
		entry:   entry,
		exited:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// ID is unique per Host.
func (h *Handle) ID() uint64 { return h.id }

// Entry returns the entry point being run.
func (h *Handle) Entry() *EntryPoint { return h.entry }

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done is closed once the handle is Stopped.
func (h *Handle) Done() <-chan struct{} {
	return h.stopped
}

// Err returns the run's fault, or nil if it returned normally or was stopped.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Duration is the time spent Running so far, or in total once Stopped.
func (h *Handle) Duration() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case Running:
		return time.Since(h.started)
	case Stopped:
		return h.finished.Sub(h.started)
	default:
		return 0
	}
}

// Wait blocks until the handle is Stopped or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.stopped:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) setRunning() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = Running
	h.started = time.Now()
}

// finish moves the handle to Stopped. Only the first call has any effect.
func (h *Handle) finish(err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Stopped {
		return false
	}
	h.state = Stopped
	h.err = err
	h.finished = time.Now()
	close(h.stopped)
	return true
}

// Host runs at most one entry point at a time on a background goroutine.
type Host struct {
	cfg     hostConfig
	console *console.Console

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	current *Handle
	nextID  uint64
	closed  bool
}

// NewHost creates a host writing run output to out. out may be nil, in which
// case output is discarded.
func NewHost(out *console.Console, opts ...HostOption) *Host {
	cfg := defaultHostConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if out == nil {
		out = console.New(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Host{cfg: cfg, console: out, ctx: ctx, cancel: cancel}
}

// Console returns the console every run writes to.
func (h *Host) Console() *console.Console { return h.console }

// Start stops any running handle, waits for it to unwind, resets the console
// and invokes entry on a new goroutine. It returns without waiting for entry.
func (h *Host) Start(entry *EntryPoint, opts ...Option) (*Handle, error) {
	if entry == nil || entry.invoke == nil {
		return nil, errors.New("start: nil entry point")
	}
	cfg := runConfig{timeout: h.cfg.timeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHostClosed
	}

	if prev := h.current; prev != nil && prev.State() == Running {
		h.cfg.logger.Debug("stopping previous run", "run", prev.id)
		prev.cancel(errSuperseded)
		h.await(prev)
	}

	h.nextID++
	handle := newHandle(h.nextID, entry)

	logger := h.cfg.logger.With("run", handle.id, "class", entry.Class, "method", entry.Method)
	out := h.console.Reset()

	ctx, cancel := context.WithCancelCause(h.ctx)
	ctx = console.WithWriter(ctx, out)
	ctx = ctxlog.WithLogger(ctx, logger)
	handle.cancel = cancel
	handle.out = out

	handle.setRunning()
	h.current = handle
	logger.Debug("run started", "lang", entry.Language)

	go h.execute(ctx, handle, cfg)
	return handle, nil
}

func (h *Host) execute(ctx context.Context, handle *Handle, cfg runConfig) {
	defer close(handle.exited)
	defer handle.cancel(nil)

	runCtx := ctx
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeoutCause(ctx, cfg.timeout, fmt.Errorf("%w after %v", ErrTimeout, cfg.timeout))
		defer cancel()
	}

	err := invoke(runCtx, handle.entry)
	fault := h.classify(runCtx, handle.entry, err)

	logger := ctxlog.FromContext(ctx)
	if !handle.finish(fault) {
		logger.Warn("run finished after it was abandoned", "error", err)
		return
	}

	if fault == nil {
		logger.Debug("run stopped", "duration", handle.Duration())
		return
	}
	logger.Error("run faulted", "error", fault)
	if h.cfg.onFault != nil {
		h.cfg.onFault(handle, fault)
	}
}

// invoke runs entry, turning a panic into an error.
func invoke(ctx context.Context, entry *EntryPoint) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return entry.Invoke(ctx)
}

// classify decides whether a run's result is a fault. Stops are not faults;
// timeouts are.
func (h *Host) classify(ctx context.Context, entry *EntryPoint, err error) error {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, ErrTimeout):
		return &ExecutionFault{Class: entry.Class, Method: entry.Method, Err: cause}
	case cause != nil:
		return nil
	case err != nil:
		return &ExecutionFault{Class: entry.Class, Method: entry.Method, Err: err}
	default:
		return nil
	}
}

// await waits for handle's goroutine to return, up to the stop timeout. A run
// that misses the deadline is marked Stopped anyway and its console writer is
// revoked so late output is dropped.
func (h *Host) await(handle *Handle) {
	timer := time.NewTimer(h.cfg.stopTimeout)
	defer timer.Stop()

	select {
	case <-handle.exited:
	case <-timer.C:
		h.cfg.logger.Warn("run did not unwind before stop timeout",
			"run", handle.id, "timeout", h.cfg.stopTimeout)
		handle.out.Revoke()
		handle.finish(nil)
	}
}

// Stop cancels handle and waits for it to unwind. It never fails and is safe
// to call on a handle that has already stopped.
func (h *Host) Stop(handle *Handle) {
	if handle == nil || handle.State() != Running {
		return
	}
	handle.cancel(errStopped)
	h.await(handle)
}

// StopCurrent stops the running handle, if any.
func (h *Host) StopCurrent() {
	h.Stop(h.Current())
}

// Current returns the most recently started handle, or nil.
func (h *Host) Current() *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// State reports the state of the most recent run, or Idle before the first.
func (h *Host) State() State {
	if cur := h.Current(); cur != nil {
		return cur.State()
	}
	return Idle
}

// Close stops the current run and rejects further starts.
func (h *Host) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	cur := h.current
	h.mu.Unlock()

	h.Stop(cur)
	h.cancel()
}
