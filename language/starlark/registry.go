package starlark

import (
	"strings"

	"go.starlark.net/syntax"
)

type class struct {
	name    string
	methods []string
}

// collectClasses finds globals bound to struct(...) or module(...) calls.
// A keyword argument is a method when its value names a top-level def with
// no parameters or is a lambda with none. Names starting with an underscore
// are private.
func collectClasses(f *syntax.File) []class {
	defs := make(map[string]bool)
	for _, stmt := range f.Stmts {
		if def, ok := stmt.(*syntax.DefStmt); ok {
			defs[def.Name.Name] = len(def.Params) == 0
		}
	}

	var out []class
	for _, stmt := range f.Stmts {
		assign, ok := stmt.(*syntax.AssignStmt)
		if !ok || assign.Op != syntax.EQ {
			continue
		}
		id, ok := assign.LHS.(*syntax.Ident)
		if !ok || private(id.Name) {
			continue
		}
		call, ok := assign.RHS.(*syntax.CallExpr)
		if !ok {
			continue
		}
		ctor, ok := call.Fn.(*syntax.Ident)
		if !ok || (ctor.Name != "struct" && ctor.Name != "module") {
			continue
		}

		c := class{name: id.Name}
		for _, arg := range call.Args {
			kw, ok := arg.(*syntax.BinaryExpr)
			if !ok || kw.Op != syntax.EQ {
				continue
			}
			key, ok := kw.X.(*syntax.Ident)
			if !ok || private(key.Name) {
				continue
			}
			if callable(kw.Y, defs) {
				c.methods = append(c.methods, key.Name)
			}
		}
		out = append(out, c)
	}
	return out
}

func callable(e syntax.Expr, defs map[string]bool) bool {
	switch v := e.(type) {
	case *syntax.Ident:
		return defs[v.Name]
	case *syntax.LambdaExpr:
		return len(v.Params) == 0
	default:
		return false
	}
}

func private(name string) bool {
	return name == "" || strings.HasPrefix(name, "_")
}
