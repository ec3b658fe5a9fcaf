// Package config loads hotrun.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/caffeineduck/hotrun/executor"
	"github.com/caffeineduck/hotrun/hostfunc"
	"github.com/caffeineduck/hotrun/internal/logging"
)

// FileName is the configuration file looked up from the working directory.
const FileName = "hotrun.toml"

// ANSI modes for [host].ansi.
const (
	ANSIAuto   = "auto"
	ANSIAlways = "always"
	ANSINever  = "never"
)

// Duration is a time.Duration written as a string such as "2s" or "150ms".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Run  RunConfig  `toml:"run"`
	Host HostConfig `toml:"host"`
	Log  LogConfig  `toml:"log"`
	HTTP HTTPConfig `toml:"http"`
	FS   FSConfig   `toml:"fs"`
	KV   KVConfig   `toml:"kv"`

	// Path is the file the configuration was loaded from, if any.
	Path string `toml:"-"`
}

type RunConfig struct {
	Language   string   `toml:"language"`
	Class      string   `toml:"class"`
	Method     string   `toml:"method"`
	References []string `toml:"references"`
	Timeout    Duration `toml:"timeout"`
}

type HostConfig struct {
	StopTimeout Duration `toml:"stop_timeout"`
	ANSI        string   `toml:"ansi"`
	MaxOutput   int      `toml:"max_output"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type HTTPConfig struct {
	AllowedHosts []string `toml:"allowed_hosts"`
	MaxURLLength int      `toml:"max_url_length"`
	MaxBodySize  int64    `toml:"max_body_size"`
	Timeout      Duration `toml:"timeout"`
}

type FSConfig struct {
	Mounts        []MountConfig `toml:"mount"`
	MaxFileSize   int64         `toml:"max_file_size"`
	MaxWriteSize  int64         `toml:"max_write_size"`
	MaxPathLength int           `toml:"max_path_length"`
}

type MountConfig struct {
	Virtual string `toml:"virtual"`
	Host    string `toml:"host"`
	Mode    string `toml:"mode"`
}

type KVConfig struct {
	Enabled      bool `toml:"enabled"`
	MaxKeySize   int  `toml:"max_key_size"`
	MaxValueSize int  `toml:"max_value_size"`
	MaxEntries   int  `toml:"max_entries"`
}

// Defaults returns the configuration used when no file is found.
func Defaults() Config {
	kv := hostfunc.DefaultKVConfig()
	return Config{
		Run: RunConfig{
			Class:      executor.DefaultClass,
			Method:     executor.DefaultMethod,
			References: slices.Clone(executor.DefaultReferences),
		},
		Host: HostConfig{
			StopTimeout: Duration(executor.DefaultStopTimeout),
			ANSI:        ANSIAuto,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		KV: KVConfig{
			MaxKeySize:   kv.MaxKeySize,
			MaxValueSize: kv.MaxValueSize,
			MaxEntries:   kv.MaxEntries,
		},
	}
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load decodes path over the defaults and validates the result. Relative
// mount host paths are taken relative to the file's directory.
func Load(path string) (Config, error) {
	cfg := Defaults()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	root := filepath.Dir(path)
	for i, m := range cfg.FS.Mounts {
		if m.Host != "" && !filepath.IsAbs(m.Host) {
			cfg.FS.Mounts[i].Host = filepath.Join(root, filepath.FromSlash(m.Host))
		}
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads explicit when set, otherwise the nearest FileName above
// startDir, otherwise the defaults.
func Discover(explicit, startDir string) (Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Defaults(), nil
	}
	return Load(path)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Run.Language != "" {
		if _, err := executor.ParseTag(c.Run.Language); err != nil {
			return fmt.Errorf("[run].language: %w", err)
		}
	}
	if c.Run.Timeout < 0 {
		return errors.New("[run].timeout must not be negative")
	}
	if c.Host.StopTimeout < 0 {
		return errors.New("[host].stop_timeout must not be negative")
	}
	switch c.Host.ANSI {
	case "", ANSIAuto, ANSIAlways, ANSINever:
	default:
		return fmt.Errorf("[host].ansi must be %q, %q or %q", ANSIAuto, ANSIAlways, ANSINever)
	}
	if c.Host.MaxOutput < 0 {
		return errors.New("[host].max_output must not be negative")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("[log].level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("[log].format: unknown format %q", c.Log.Format)
	}
	if c.HTTP.MaxURLLength < 0 || c.HTTP.MaxBodySize < 0 || c.HTTP.Timeout < 0 {
		return errors.New("[http] limits must not be negative")
	}
	for i, m := range c.FS.Mounts {
		if m.Virtual == "" || m.Host == "" {
			return fmt.Errorf("[[fs.mount]] #%d: virtual and host are required", i+1)
		}
		if _, err := hostfunc.ParseMountMode(m.Mode); err != nil {
			return fmt.Errorf("[[fs.mount]] #%d: %w", i+1, err)
		}
	}
	if c.FS.MaxFileSize < 0 || c.FS.MaxWriteSize < 0 || c.FS.MaxPathLength < 0 {
		return errors.New("[fs] limits must not be negative")
	}
	if c.KV.MaxKeySize < 0 || c.KV.MaxValueSize < 0 || c.KV.MaxEntries < 0 {
		return errors.New("[kv] limits must not be negative")
	}
	return nil
}

// SessionOptions converts the configuration into session options. Languages,
// logging and output are left to the caller.
func (c Config) SessionOptions() []executor.SessionOption {
	opts := []executor.SessionOption{
		executor.WithReferences(c.Run.References...),
		executor.WithSessionTimeout(c.Run.Timeout.Std()),
		executor.WithStopTimeout(c.Host.StopTimeout.Std()),
		executor.WithMaxOutput(c.Host.MaxOutput),
	}

	if c.KV.Enabled {
		kv := hostfunc.DefaultKVConfig()
		if c.KV.MaxKeySize > 0 {
			kv.MaxKeySize = c.KV.MaxKeySize
		}
		if c.KV.MaxValueSize > 0 {
			kv.MaxValueSize = c.KV.MaxValueSize
		}
		if c.KV.MaxEntries > 0 {
			kv.MaxEntries = c.KV.MaxEntries
		}
		opts = append(opts, executor.WithKVStore(hostfunc.NewKV(kv)))
	}

	if len(c.HTTP.AllowedHosts) > 0 {
		opts = append(opts,
			executor.WithSessionAllowedHosts(c.HTTP.AllowedHosts),
			executor.WithSessionHTTPMaxURLLength(c.HTTP.MaxURLLength),
			executor.WithSessionHTTPMaxBodySize(c.HTTP.MaxBodySize),
			executor.WithSessionHTTPTimeout(c.HTTP.Timeout.Std()),
		)
	}

	for _, m := range c.FS.Mounts {
		mode, err := hostfunc.ParseMountMode(m.Mode)
		if err != nil {
			continue // rejected by Validate
		}
		opts = append(opts, executor.WithSessionMount(m.Virtual, m.Host, mode))
	}
	if len(c.FS.Mounts) > 0 {
		opts = append(opts,
			executor.WithSessionFSMaxFileSize(c.FS.MaxFileSize),
			executor.WithSessionFSMaxWriteSize(c.FS.MaxWriteSize),
			executor.WithSessionFSMaxPathLength(c.FS.MaxPathLength),
		)
	}
	return opts
}
