package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/caffeineduck/hotrun/console"
	"github.com/caffeineduck/hotrun/diag"
	"github.com/caffeineduck/hotrun/hostfunc"
	"github.com/caffeineduck/hotrun/internal/ctxlog"
)

// CodeMissingReference marks a referenced library that is not registered.
const CodeMissingReference = "REF0001"

// Session owns everything one editor needs: the backends, the libraries code
// can reference, the console and the host that runs the compiled unit.
type Session struct {
	cfg      sessionConfig
	selector *Selector
	registry *hostfunc.Registry
	console  *console.Console
	host     *Host

	mu     sync.Mutex
	refs   *ReferenceSet
	unit   Unit
	closed bool
}

// Request describes one compile, resolve and start cycle.
type Request struct {
	Source Source
	Class  string // defaults to DefaultClass
	Method string // defaults to DefaultMethod
}

// NewSession creates a session. At least one language must be supplied with
// WithLanguages.
func NewSession(opts ...SessionOption) (*Session, error) {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	selector, err := NewSelector(cfg.langs...)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	out := console.New(cfg.output, console.WithANSI(cfg.ansi), console.WithMaxBuffer(cfg.maxOutput))

	s := &Session{
		cfg:      cfg,
		selector: selector,
		registry: buildRegistry(cfg),
		console:  out,
		host:     NewHost(out, cfg.host...),
		refs:     NewReferenceSet(cfg.references...),
	}
	return s, nil
}

func buildRegistry(cfg sessionConfig) *hostfunc.Registry {
	registry := hostfunc.NewRegistry()
	registry.Register(hostfunc.ConsoleLibrary())
	registry.Register(hostfunc.TimeLibrary())

	if cfg.kv != nil {
		registry.Register(cfg.kv.Library())
	}

	if len(cfg.allowedHosts) > 0 {
		registry.Register(hostfunc.NewHTTP(hostfunc.HTTPConfig{
			AllowedHosts: cfg.allowedHosts,
			MaxURLLength: cfg.httpMaxURLLength,
			MaxBodySize:  cfg.httpMaxBodySize,
			Timeout:      cfg.httpTimeout,
		}).Library())
	}

	if len(cfg.mounts) > 0 {
		registry.Register(hostfunc.NewFSWithConfig(cfg.fs, cfg.mounts...).Library())
	}

	for _, lib := range cfg.libraries {
		registry.Register(lib)
	}
	return registry
}

// Compile selects the backend for src.Language and compiles src against the
// current reference set. The result replaces the session's current unit; a
// failed compile leaves no current unit.
func (s *Session) Compile(ctx context.Context, src Source) (Unit, error) {
	logger := s.cfg.logger.With("lang", src.Language, "source", src.Name)
	ctx = ctxlog.WithLogger(ctx, logger)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	refs := s.refs.IDs()
	s.mu.Unlock()

	lang, err := s.selector.Select(src.Language)
	if err != nil {
		s.setUnit(nil)
		return nil, err
	}

	libs, missing := s.registry.Resolve(refs)

	start := time.Now()
	unit, err := lang.Compile(ctx, src, libs)
	unit, err = normalizeCompile(src, unit, err, missing)

	s.setUnit(unit)

	if err != nil {
		var ce *CompilationError
		if errors.As(err, &ce) {
			logger.Debug("compile failed", "diagnostics", len(ce.Diagnostics), "duration", time.Since(start))
		} else {
			logger.Error("compile error", "error", err)
		}
		return nil, err
	}

	logger.Debug("compiled", "classes", unit.Symbols().Classes(), "duration", time.Since(start))
	return unit, nil
}

// normalizeCompile enforces the backend contract: exactly one of unit and err
// is set, and a compilation error always carries diagnostics. Missing
// references are reported ahead of the backend's own diagnostics.
func normalizeCompile(src Source, unit Unit, err error, missing []string) (Unit, error) {
	refDiags := missingReferenceDiagnostics(src, missing)

	if err == nil && unit == nil {
		return nil, fmt.Errorf("compile %s: backend returned neither a unit nor an error", src.Language)
	}

	if err == nil {
		if len(refDiags) > 0 {
			return nil, &CompilationError{Diagnostics: refDiags}
		}
		return unit, nil
	}

	var ce *CompilationError
	if !errors.As(err, &ce) {
		return nil, fmt.Errorf("compile %s: %w", src.Language, err)
	}

	diags := ce.Diagnostics
	if len(diags) == 0 {
		diags = diag.Format([]diag.Raw{{
			File:    src.Name,
			Message: "compilation failed without diagnostics",
		}})
	}
	return nil, &CompilationError{Diagnostics: append(refDiags, diags...)}
}

func missingReferenceDiagnostics(src Source, missing []string) []diag.Diagnostic {
	if len(missing) == 0 {
		return nil
	}
	raws := make([]diag.Raw, 0, len(missing))
	for _, id := range missing {
		raws = append(raws, diag.Raw{
			File:    src.Name,
			Code:    CodeMissingReference,
			Message: fmt.Sprintf("referenced library %q could not be found", id),
		})
	}
	return diag.Format(raws)
}

func (s *Session) setUnit(u Unit) {
	s.mu.Lock()
	s.unit = u
	s.mu.Unlock()
}

// Unit returns the most recently compiled unit, or nil.
func (s *Session) Unit() Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unit
}

// Resolve finds an entry point in the current unit.
func (s *Session) Resolve(class, method string) (*EntryPoint, error) {
	s.mu.Lock()
	unit, closed := s.unit, s.closed
	s.mu.Unlock()

	if closed {
		return nil, ErrSessionClosed
	}
	return Resolve(unit, class, method)
}

// Run compiles req.Source, resolves the entry point and starts it. Nothing is
// started if compilation or resolution fails.
func (s *Session) Run(ctx context.Context, req Request, opts ...Option) (*Handle, error) {
	class, method := req.Class, req.Method
	if class == "" {
		class = DefaultClass
	}
	if method == "" {
		method = DefaultMethod
	}

	unit, err := s.Compile(ctx, req.Source)
	if err != nil {
		return nil, err
	}

	entry, err := Resolve(unit, class, method)
	if err != nil {
		return nil, err
	}

	handle, err := s.host.Start(entry, opts...)
	if errors.Is(err, ErrHostClosed) {
		return nil, ErrSessionClosed
	}
	return handle, err
}

// Stop stops the current run, if any.
func (s *Session) Stop() {
	s.host.StopCurrent()
}

func (s *Session) Console() *console.Console { return s.console }

func (s *Session) Host() *Host { return s.host }

// References returns the current reference identifiers, sorted.
func (s *Session) References() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs.IDs()
}

// SetReferences replaces the reference set.
func (s *Session) SetReferences(ids ...string) {
	s.mu.Lock()
	s.refs = NewReferenceSet(ids...)
	s.mu.Unlock()
}

// AddReference adds id and reports whether it was new.
func (s *Session) AddReference(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs.Add(id)
}

// RemoveReference removes id and reports whether it was present.
func (s *Session) RemoveReference(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs.Remove(id)
}

// Libraries returns the identifiers of every registered library.
func (s *Session) Libraries() []string {
	return s.registry.List()
}

// Library returns a registered library by identifier.
func (s *Session) Library(id string) (hostfunc.Library, bool) {
	return s.registry.Get(id)
}

// Languages returns the session's backends.
func (s *Session) Languages() []Language {
	return s.selector.Languages()
}

func (s *Session) Selector() *Selector { return s.selector }

// Close stops the current run and releases the session.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.unit = nil
	s.mu.Unlock()

	s.host.Close()
	return nil
}
