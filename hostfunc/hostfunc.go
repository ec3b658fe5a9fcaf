package hostfunc

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// ArgsKey holds positional arguments when a script calls a host function with
// anything other than a single map or table.
const ArgsKey = "args"

// Func is a host function callable from script code.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Library is a named bundle of host functions. Its name is the identifier a
// reference set uses to make it visible to compiled code.
type Library struct {
	Name  string
	Funcs map[string]Func
}

// FuncNames returns the library's function names in sorted order.
func (l Library) FuncNames() []string {
	return slices.Sorted(maps.Keys(l.Funcs))
}

// Registry maps reference identifiers to libraries.
type Registry struct {
	mu   sync.RWMutex
	libs map[string]Library
}

func NewRegistry() *Registry {
	return &Registry{libs: make(map[string]Library)}
}

// Register adds lib, replacing any library with the same name.
func (r *Registry) Register(lib Library) {
	r.mu.Lock()
	r.libs[lib.Name] = lib
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Library, bool) {
	r.mu.RLock()
	lib, ok := r.libs[name]
	r.mu.RUnlock()
	return lib, ok
}

// List returns the registered library names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.libs))
}

// Resolve looks up each id in order. Libraries are returned in the order of
// ids, and ids with no registered library are returned in missing.
func (r *Registry) Resolve(ids []string) (libs []Library, missing []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range ids {
		lib, ok := r.libs[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		libs = append(libs, lib)
	}
	return libs, missing
}

// Normalize converts a host function result into plain JSON values: nil,
// bool, float64, string, []any and map[string]any. Script runtimes only need
// to convert those.
func Normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, float64, string:
		return v, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize result: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize result: %w", err)
	}
	return out, nil
}

// positional returns the i-th positional argument, if present.
func positional(args map[string]any, i int) (any, bool) {
	list, ok := args[ArgsKey].([]any)
	if !ok || i >= len(list) {
		return nil, false
	}
	return list[i], true
}

// stringArg reads a named string argument, falling back to position pos.
func stringArg(args map[string]any, name string, pos int) (string, bool) {
	if v, ok := args[name].(string); ok {
		return v, true
	}
	if v, ok := positional(args, pos); ok {
		s, ok := v.(string)
		return s, ok
	}
	return "", false
}

// numberArg reads a named numeric argument, falling back to position pos.
func numberArg(args map[string]any, name string, pos int) (float64, bool) {
	v, ok := args[name]
	if !ok {
		v, ok = positional(args, pos)
	}
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
