package starlark

import (
	"context"
	"fmt"
	"math"

	starlarkgo "go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/caffeineduck/hotrun/hostfunc"
)

// libraryModule exposes lib as a module of builtins bound to ctx.
func libraryModule(ctx context.Context, lib hostfunc.Library) *starlarkstruct.Module {
	members := make(starlarkgo.StringDict, len(lib.Funcs))
	for _, name := range lib.FuncNames() {
		fn := lib.Funcs[name]
		members[name] = starlarkgo.NewBuiltin(lib.Name+"."+name, func(_ *starlarkgo.Thread, b *starlarkgo.Builtin, args starlarkgo.Tuple, kwargs []starlarkgo.Tuple) (starlarkgo.Value, error) {
			params, err := callArgs(args, kwargs)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
			result, err := fn(ctx, params)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
			v, err := hostfunc.Normalize(result)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
			return toStarlark(v), nil
		})
	}
	return &starlarkstruct.Module{Name: lib.Name, Members: members}
}

// maxDepth bounds container nesting in host call arguments. A list or dict
// that contains itself hits it instead of recursing forever.
const maxDepth = 64

// callArgs applies the host calling convention: keyword arguments or a
// single dict form the argument map, positional arguments go under ArgsKey.
func callArgs(args starlarkgo.Tuple, kwargs []starlarkgo.Tuple) (map[string]any, error) {
	if len(kwargs) == 0 && len(args) == 1 {
		if d, ok := args[0].(*starlarkgo.Dict); ok {
			v, err := fromStarlark(d, 0)
			if err != nil {
				return nil, err
			}
			if m, ok := v.(map[string]any); ok {
				return m, nil
			}
		}
	}

	out := make(map[string]any, len(kwargs)+1)
	for _, kv := range kwargs {
		if key, ok := kv[0].(starlarkgo.String); ok {
			v, err := fromStarlark(kv[1], 0)
			if err != nil {
				return nil, err
			}
			out[string(key)] = v
		}
	}
	if len(args) > 0 || len(kwargs) == 0 {
		list, err := fromItems(args, 0)
		if err != nil {
			return nil, err
		}
		out[hostfunc.ArgsKey] = list
	}
	return out, nil
}

func fromItems(items []starlarkgo.Value, depth int) ([]any, error) {
	list := make([]any, 0, len(items))
	for _, item := range items {
		v, err := fromStarlark(item, depth)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}

func fromStarlark(v starlarkgo.Value, depth int) (any, error) {
	switch v.(type) {
	case *starlarkgo.List, starlarkgo.Tuple, *starlarkgo.Dict:
		if depth >= maxDepth {
			return nil, fmt.Errorf("%s nested deeper than %d levels (does it contain itself?)", v.Type(), maxDepth)
		}
	}

	switch x := v.(type) {
	case starlarkgo.NoneType:
		return nil, nil
	case starlarkgo.Bool:
		return bool(x), nil
	case starlarkgo.Int:
		if i, ok := x.Int64(); ok {
			return float64(i), nil
		}
		f, _ := starlarkgo.AsFloat(x)
		return f, nil
	case starlarkgo.Float:
		return float64(x), nil
	case starlarkgo.String:
		return string(x), nil
	case *starlarkgo.List:
		items := make([]starlarkgo.Value, x.Len())
		for i := range items {
			items[i] = x.Index(i)
		}
		return fromItems(items, depth+1)
	case starlarkgo.Tuple:
		return fromItems(x, depth+1)
	case *starlarkgo.Dict:
		m := make(map[string]any, x.Len())
		for _, item := range x.Items() {
			key := item[0].String()
			if s, ok := item[0].(starlarkgo.String); ok {
				key = string(s)
			}
			val, err := fromStarlark(item[1], depth+1)
			if err != nil {
				return nil, err
			}
			m[key] = val
		}
		return m, nil
	default:
		return v.String(), nil
	}
}

func toStarlark(v any) starlarkgo.Value {
	switch x := v.(type) {
	case nil:
		return starlarkgo.None
	case bool:
		return starlarkgo.Bool(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return starlarkgo.MakeInt64(int64(x))
		}
		return starlarkgo.Float(x)
	case string:
		return starlarkgo.String(x)
	case []any:
		items := make([]starlarkgo.Value, 0, len(x))
		for _, item := range x {
			items = append(items, toStarlark(item))
		}
		return starlarkgo.NewList(items)
	case map[string]any:
		d := starlarkgo.NewDict(len(x))
		for k, item := range x {
			_ = d.SetKey(starlarkgo.String(k), toStarlark(item))
		}
		return d
	default:
		return starlarkgo.None
	}
}
