package executor

import (
	"io"
	"log/slog"
	"time"

	"github.com/caffeineduck/hotrun/hostfunc"
)

// DefaultStopTimeout bounds how long a stop waits for a run to unwind.
const DefaultStopTimeout = 2 * time.Second

// Option configures a single run.
type Option func(*runConfig)

type runConfig struct {
	timeout time.Duration
}

// WithTimeout stops the run with a timeout fault after d. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// HostOption configures a Host.
type HostOption func(*hostConfig)

// FaultHandler is called on the execution goroutine after a run ends with a
// fault. It must not block for long.
type FaultHandler func(h *Handle, err error)

type hostConfig struct {
	logger      *slog.Logger
	stopTimeout time.Duration
	onFault     FaultHandler
	timeout     time.Duration
}

func defaultHostConfig() hostConfig {
	return hostConfig{
		logger:      slog.New(slog.DiscardHandler),
		stopTimeout: DefaultStopTimeout,
	}
}

// WithHostLogger sets the logger for run lifecycle events.
func WithHostLogger(l *slog.Logger) HostOption {
	return func(c *hostConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHostStopTimeout bounds how long Stop and Start wait for a previous run
// to return.
func WithHostStopTimeout(d time.Duration) HostOption {
	return func(c *hostConfig) {
		if d > 0 {
			c.stopTimeout = d
		}
	}
}

// WithHostFaultHandler registers fn to receive execution faults.
func WithHostFaultHandler(fn FaultHandler) HostOption {
	return func(c *hostConfig) {
		c.onFault = fn
	}
}

// WithHostTimeout sets the default per-run timeout.
func WithHostTimeout(d time.Duration) HostOption {
	return func(c *hostConfig) {
		c.timeout = d
	}
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	langs      []Language
	references []string
	output     io.Writer
	ansi       bool
	maxOutput  int
	libraries  []hostfunc.Library
	logger     *slog.Logger

	host []HostOption

	kv               *hostfunc.KV
	allowedHosts     []string
	httpMaxURLLength int
	httpMaxBodySize  int64
	httpTimeout      time.Duration
	mounts           []hostfunc.Mount
	fs               hostfunc.FSConfig
}

// DefaultReferences are referenced by a new session unless overridden.
var DefaultReferences = []string{hostfunc.LibConsole, hostfunc.LibTime}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		references: DefaultReferences,
		logger:     slog.New(slog.DiscardHandler),
	}
}

// WithLanguages registers the compiler backends a session can select.
func WithLanguages(langs ...Language) SessionOption {
	return func(c *sessionConfig) {
		c.langs = append(c.langs, langs...)
	}
}

// WithReferences replaces the initial reference set.
func WithReferences(ids ...string) SessionOption {
	return func(c *sessionConfig) {
		c.references = ids
	}
}

// WithLibrary registers an additional library that code can reference.
func WithLibrary(lib hostfunc.Library) SessionOption {
	return func(c *sessionConfig) {
		c.libraries = append(c.libraries, lib)
	}
}

// WithOutput mirrors console output to w.
func WithOutput(w io.Writer) SessionOption {
	return func(c *sessionConfig) {
		c.output = w
	}
}

// WithANSI writes a clear-screen sequence to the output on every reset.
func WithANSI(enabled bool) SessionOption {
	return func(c *sessionConfig) {
		c.ansi = enabled
	}
}

// WithMaxOutput bounds the console buffer in bytes.
func WithMaxOutput(n int) SessionOption {
	return func(c *sessionConfig) {
		c.maxOutput = n
	}
}

// WithLogger sets the session and host logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(c *sessionConfig) {
		if l != nil {
			c.logger = l
		}
		c.host = append(c.host, WithHostLogger(l))
	}
}

// WithSessionTimeout sets the default run timeout.
func WithSessionTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.host = append(c.host, WithHostTimeout(d))
	}
}

// WithStopTimeout bounds how long a stop waits for a run to unwind.
func WithStopTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.host = append(c.host, WithHostStopTimeout(d))
	}
}

// WithFaultHandler receives execution faults from every run.
func WithFaultHandler(fn FaultHandler) SessionOption {
	return func(c *sessionConfig) {
		c.host = append(c.host, WithHostFaultHandler(fn))
	}
}

// WithSessionKV makes the "kv" library available with default limits.
func WithSessionKV() SessionOption {
	return func(c *sessionConfig) {
		if c.kv == nil {
			c.kv = hostfunc.NewKV(hostfunc.DefaultKVConfig())
		}
	}
}

// WithKVStore makes the "kv" library available backed by kv.
func WithKVStore(kv *hostfunc.KV) SessionOption {
	return func(c *sessionConfig) {
		c.kv = kv
	}
}

// WithSessionAllowedHosts makes the "http" library available for hosts.
func WithSessionAllowedHosts(hosts []string) SessionOption {
	return func(c *sessionConfig) {
		c.allowedHosts = hosts
	}
}

func WithSessionHTTPMaxURLLength(size int) SessionOption {
	return func(c *sessionConfig) {
		c.httpMaxURLLength = size
	}
}

func WithSessionHTTPMaxBodySize(size int64) SessionOption {
	return func(c *sessionConfig) {
		c.httpMaxBodySize = size
	}
}

func WithSessionHTTPTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.httpTimeout = d
	}
}

// Mount permission modes (re-exported from hostfunc for convenience).
const (
	MountReadOnly        = hostfunc.MountReadOnly
	MountReadWrite       = hostfunc.MountReadWrite
	MountReadWriteCreate = hostfunc.MountReadWriteCreate
)

// WithSessionMount makes the "fs" library available and adds a mount.
//
//	executor.WithSessionMount("/data", "./input", executor.MountReadOnly)
//	executor.WithSessionMount("/workspace", "./work", executor.MountReadWriteCreate)
func WithSessionMount(virtualPath, hostPath string, mode hostfunc.MountMode) SessionOption {
	return func(c *sessionConfig) {
		c.mounts = append(c.mounts, hostfunc.Mount{
			VirtualPath: virtualPath,
			HostPath:    hostPath,
			Mode:        mode,
		})
	}
}

func WithSessionFSMaxFileSize(size int64) SessionOption {
	return func(c *sessionConfig) {
		c.fs.MaxFileSize = size
	}
}

func WithSessionFSMaxWriteSize(size int64) SessionOption {
	return func(c *sessionConfig) {
		c.fs.MaxWriteSize = size
	}
}

func WithSessionFSMaxPathLength(n int) SessionOption {
	return func(c *sessionConfig) {
		c.fs.MaxPathLength = n
	}
}
