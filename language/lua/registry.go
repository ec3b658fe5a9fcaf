package lua

import (
	"strings"

	"github.com/yuin/gopher-lua/ast"
)

type method struct {
	class  string
	method string
	self   bool // defined with a colon; called with the class table as self
}

// collectMethods finds the entry points a chunk defines at top level. Only
// global tables count as classes, and only functions without parameters or
// varargs count as methods. Names starting with an underscore are private.
// Once a top-level local shadows a name, later definitions through that name
// target the local and are skipped.
func collectMethods(chunk []ast.Stmt) []method {
	var out []method
	locals := make(map[string]bool)
	keep := func(ms ...method) {
		for _, m := range ms {
			if !locals[m.class] {
				out = append(out, m)
			}
		}
	}
	for _, stmt := range chunk {
		switch s := stmt.(type) {
		case *ast.AssignStmt:
			keep(assignedMethods(s)...)
		case *ast.FuncDefStmt:
			if m, ok := definedMethod(s); ok {
				keep(m)
			}
		case *ast.LocalAssignStmt:
			// gopher-lua also parses `local function f` as a LocalAssignStmt.
			for _, name := range s.Names {
				locals[name] = true
			}
		}
	}
	return out
}

// assignedMethods handles X = { M = function() end } and X.M = function() end.
func assignedMethods(s *ast.AssignStmt) []method {
	var out []method
	for i, lhs := range s.Lhs {
		if i >= len(s.Rhs) {
			break
		}
		switch target := lhs.(type) {
		case *ast.IdentExpr:
			table, ok := s.Rhs[i].(*ast.TableExpr)
			if !ok || private(target.Value) {
				continue
			}
			// The table is a class even when it has no methods yet.
			out = append(out, method{class: target.Value})
			for _, field := range table.Fields {
				key, ok := field.Key.(*ast.StringExpr)
				if !ok || private(key.Value) || !callable(field.Value) {
					continue
				}
				out = append(out, method{class: target.Value, method: key.Value})
			}
		case *ast.AttrGetExpr:
			class, name, ok := attr(target)
			if ok && callable(s.Rhs[i]) {
				out = append(out, method{class: class, method: name})
			}
		}
	}
	return out
}

// definedMethod handles function X.M() and function X:M().
func definedMethod(s *ast.FuncDefStmt) (method, bool) {
	if s.Name == nil || s.Func == nil {
		return method{}, false
	}

	if s.Name.Func == nil {
		recv, ok := s.Name.Receiver.(*ast.IdentExpr)
		if !ok || private(recv.Value) || private(s.Name.Method) {
			return method{}, false
		}
		if !noParams(s.Func.ParList, "self") {
			return method{}, false
		}
		return method{class: recv.Value, method: s.Name.Method, self: true}, true
	}

	get, ok := s.Name.Func.(*ast.AttrGetExpr)
	if !ok {
		return method{}, false
	}
	class, name, ok := attr(get)
	if !ok || !noParams(s.Func.ParList) {
		return method{}, false
	}
	return method{class: class, method: name}, true
}

// attr splits X.M where X is a global name.
func attr(e *ast.AttrGetExpr) (class, name string, ok bool) {
	obj, ok := e.Object.(*ast.IdentExpr)
	if !ok {
		return "", "", false
	}
	key, ok := e.Key.(*ast.StringExpr)
	if !ok || private(obj.Value) || private(key.Value) {
		return "", "", false
	}
	return obj.Value, key.Value, true
}

func callable(e ast.Expr) bool {
	fn, ok := e.(*ast.FunctionExpr)
	return ok && noParams(fn.ParList)
}

// noParams reports whether a parameter list is empty, ignoring implicit
// names the parser may have added.
func noParams(p *ast.ParList, implicit ...string) bool {
	if p == nil {
		return true
	}
	if p.HasVargs {
		return false
	}
	names := p.Names
	for _, name := range implicit {
		if len(names) > 0 && names[0] == name {
			names = names[1:]
		}
	}
	return len(names) == 0
}

func private(name string) bool {
	return name == "" || strings.HasPrefix(name, "_")
}
