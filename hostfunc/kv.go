package hostfunc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

const (
	DefaultKVMaxKeySize   = 256
	DefaultKVMaxValueSize = 64 * 1024
	DefaultKVMaxEntries   = 1000
)

// KVConfig bounds a KV store.
type KVConfig struct {
	MaxKeySize   int
	MaxValueSize int
	MaxEntries   int
}

// DefaultKVConfig returns the default limits.
func DefaultKVConfig() KVConfig {
	return KVConfig{
		MaxKeySize:   DefaultKVMaxKeySize,
		MaxValueSize: DefaultKVMaxValueSize,
		MaxEntries:   DefaultKVMaxEntries,
	}
}

// KV is an in-memory store shared by every run of a session, so a value set
// by one run is visible to the next. Values are kept in normalized form.
type KV struct {
	cfg  KVConfig
	data map[string]any
	mu   sync.RWMutex
}

func NewKV(cfg KVConfig) *KV {
	def := DefaultKVConfig()
	if cfg.MaxKeySize <= 0 {
		cfg.MaxKeySize = def.MaxKeySize
	}
	if cfg.MaxValueSize <= 0 {
		cfg.MaxValueSize = def.MaxValueSize
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	return &KV{cfg: cfg, data: make(map[string]any)}
}

// Library exposes the store as the "kv" library.
func (s *KV) Library() Library {
	return Library{
		Name: LibKV,
		Funcs: map[string]Func{
			"get":    s.Get,
			"set":    s.Set,
			"delete": s.Delete,
			"keys":   s.Keys,
		},
	}
}

func (s *KV) Get(ctx context.Context, args map[string]any) (any, error) {
	key, ok := stringArg(args, "key", 0)
	if !ok {
		return nil, errors.New("key required")
	}

	s.mu.RLock()
	val, exists := s.data[key]
	s.mu.RUnlock()

	if !exists {
		return args["default"], nil
	}
	return val, nil
}

func (s *KV) Set(ctx context.Context, args map[string]any) (any, error) {
	key, ok := stringArg(args, "key", 0)
	if !ok {
		return nil, errors.New("key required")
	}
	raw, ok := args["value"]
	if !ok {
		raw, ok = positional(args, 1)
	}
	if !ok {
		return nil, errors.New("value required")
	}
	if len(key) > s.cfg.MaxKeySize {
		return nil, fmt.Errorf("key exceeds max size %d", s.cfg.MaxKeySize)
	}
	val, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(val)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	if len(encoded) > s.cfg.MaxValueSize {
		return nil, fmt.Errorf("value exceeds max size %d", s.cfg.MaxValueSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; !exists && len(s.data) >= s.cfg.MaxEntries {
		return nil, fmt.Errorf("store full: %d entries", s.cfg.MaxEntries)
	}
	s.data[key] = val
	return "ok", nil
}

func (s *KV) Delete(ctx context.Context, args map[string]any) (any, error) {
	key, ok := stringArg(args, "key", 0)
	if !ok {
		return nil, errors.New("key required")
	}

	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()

	return "ok", nil
}

// Keys returns all keys in sorted order.
func (s *KV) Keys(ctx context.Context, args map[string]any) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.data)), nil
}
