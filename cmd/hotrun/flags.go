package main

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/caffeineduck/hotrun/hostfunc"
	"github.com/caffeineduck/hotrun/internal/config"
)

// sessionFlags are the capability and limit flags shared by run, refs, shell
// and serve. Only flags given on the command line override the configuration.
type sessionFlags struct {
	refs       []string
	timeout    time.Duration
	kv         bool
	allowHosts []string
	mounts     []string

	httpMaxURL  int
	httpMaxBody int64
	fsMaxFile   int64
	fsMaxWrite  int64
	fsMaxPath   int
}

func (f *sessionFlags) register(fs *pflag.FlagSet) {
	fs.StringSliceVar(&f.refs, "ref", nil, "Referenced library (repeatable, replaces the configured set)")
	fs.DurationVar(&f.timeout, "timeout", 0, "Run timeout (0 runs until stopped)")
	fs.BoolVar(&f.kv, "kv", false, "Enable the kv library")
	fs.StringSliceVar(&f.allowHosts, "allow-host", nil, "Enable the http library for host (repeatable)")
	fs.StringSliceVar(&f.mounts, "mount", nil, "Enable the fs library with virtual:host:mode (repeatable)")

	// Security limits
	fs.IntVar(&f.httpMaxURL, "http-max-url", hostfunc.DefaultMaxURLLength, "Max HTTP URL length")
	fs.Int64Var(&f.httpMaxBody, "http-max-body", hostfunc.DefaultMaxBodySize, "Max HTTP response body size")
	fs.Int64Var(&f.fsMaxFile, "fs-max-file", hostfunc.DefaultFSMaxFileSize, "Max file read size")
	fs.Int64Var(&f.fsMaxWrite, "fs-max-write", hostfunc.DefaultFSMaxWriteSize, "Max file write size")
	fs.IntVar(&f.fsMaxPath, "fs-max-path", hostfunc.DefaultFSMaxPathLength, "Max path length")
}

func (f *sessionFlags) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	if fs.Changed("ref") {
		cfg.Run.References = f.refs
	}
	if fs.Changed("timeout") {
		cfg.Run.Timeout = config.Duration(f.timeout)
	}
	if fs.Changed("kv") {
		cfg.KV.Enabled = f.kv
	}
	if fs.Changed("allow-host") {
		cfg.HTTP.AllowedHosts = append(cfg.HTTP.AllowedHosts, f.allowHosts...)
	}
	for _, spec := range f.mounts {
		m, err := hostfunc.ParseMount(spec)
		if err != nil {
			return fmt.Errorf("--mount: %w", err)
		}
		cfg.FS.Mounts = append(cfg.FS.Mounts, config.MountConfig{
			Virtual: m.VirtualPath,
			Host:    m.HostPath,
			Mode:    m.Mode.String(),
		})
	}

	if fs.Changed("http-max-url") {
		cfg.HTTP.MaxURLLength = f.httpMaxURL
	}
	if fs.Changed("http-max-body") {
		cfg.HTTP.MaxBodySize = f.httpMaxBody
	}
	if fs.Changed("fs-max-file") {
		cfg.FS.MaxFileSize = f.fsMaxFile
	}
	if fs.Changed("fs-max-write") {
		cfg.FS.MaxWriteSize = f.fsMaxWrite
	}
	if fs.Changed("fs-max-path") {
		cfg.FS.MaxPathLength = f.fsMaxPath
	}
	return cfg.Validate()
}
