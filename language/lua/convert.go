package lua

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/caffeineduck/hotrun/hostfunc"
)

// libraryTable exposes lib as a table of Lua functions bound to ctx.
func libraryTable(ctx context.Context, L *lua.LState, lib hostfunc.Library) *lua.LTable {
	tbl := L.NewTable()
	for _, name := range lib.FuncNames() {
		fn := lib.Funcs[name]
		qualified := lib.Name + "." + name
		L.SetField(tbl, name, L.NewFunction(func(L *lua.LState) int {
			args, err := callArgs(L)
			if err != nil {
				L.RaiseError("%s: %v", qualified, err)
				return 0
			}
			result, err := fn(ctx, args)
			if err != nil {
				L.RaiseError("%s: %v", qualified, err)
				return 0
			}
			v, err := hostfunc.Normalize(result)
			if err != nil {
				L.RaiseError("%s: %v", qualified, err)
				return 0
			}
			L.Push(toLua(L, v))
			return 1
		}))
	}
	return tbl
}

// maxDepth bounds table nesting in host call arguments. Self-referencing
// tables hit it instead of recursing forever.
const maxDepth = 64

// callArgs applies the host calling convention: a single table with string
// keys is the argument map, anything else is positional.
func callArgs(L *lua.LState) (map[string]any, error) {
	n := L.GetTop()
	if n == 1 {
		if tbl, ok := L.Get(1).(*lua.LTable); ok && tbl.MaxN() == 0 {
			v, err := fromLua(tbl, 0)
			if err != nil {
				return nil, err
			}
			if m, ok := v.(map[string]any); ok && len(m) > 0 {
				return m, nil
			}
		}
	}
	list := make([]any, 0, n)
	for i := 1; i <= n; i++ {
		v, err := fromLua(L.Get(i), 0)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return map[string]any{hostfunc.ArgsKey: list}, nil
}

func fromLua(v lua.LValue, depth int) (any, error) {
	switch x := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(x), nil
	case lua.LNumber:
		return float64(x), nil
	case lua.LString:
		return string(x), nil
	case *lua.LTable:
		if depth >= maxDepth {
			return nil, fmt.Errorf("table nested deeper than %d levels (is it self-referencing?)", maxDepth)
		}
		if n := x.MaxN(); n > 0 {
			list := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				item, err := fromLua(x.RawGetInt(i), depth+1)
				if err != nil {
					return nil, err
				}
				list = append(list, item)
			}
			return list, nil
		}
		m := make(map[string]any)
		var err error
		x.ForEach(func(k, val lua.LValue) {
			if err != nil {
				return
			}
			m[k.String()], err = fromLua(val, depth+1)
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return v.String(), nil
	}
}

func toLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case float64:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	case []any:
		tbl := L.CreateTable(len(x), 0)
		for i, item := range x {
			tbl.RawSetInt(i+1, toLua(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.CreateTable(0, len(x))
		for k, item := range x {
			tbl.RawSetString(k, toLua(L, item))
		}
		return tbl
	default:
		return lua.LNil
	}
}
