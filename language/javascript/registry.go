package javascript

import (
	"github.com/dop251/goja/ast"
)

type class struct {
	name    string
	methods []string
}

// collectClasses finds the classes a program declares at top level: class
// declarations with static methods, and object literals bound to a name.
// Only methods that take no parameters count. Private, computed, accessor,
// async and generator members never do.
func collectClasses(prog *ast.Program) []class {
	var out []class
	for _, stmt := range prog.Body {
		switch s := stmt.(type) {
		case *ast.ClassDeclaration:
			if s.Class != nil && s.Class.Name != nil {
				out = append(out, class{name: s.Class.Name.Name.String(), methods: staticMethods(s.Class)})
			}
		case *ast.LexicalDeclaration:
			out = append(out, boundObjects(s.List)...)
		case *ast.VariableStatement:
			out = append(out, boundObjects(s.List)...)
		}
	}
	return out
}

func staticMethods(c *ast.ClassLiteral) []string {
	var out []string
	for _, el := range c.Body {
		switch m := el.(type) {
		case *ast.MethodDefinition:
			if !m.Static || m.Computed || m.Kind != ast.PropertyKindMethod {
				continue
			}
			if name, ok := keyName(m.Key); ok && callable(m.Body) {
				out = append(out, name)
			}
		case *ast.FieldDefinition:
			if !m.Static || m.Computed {
				continue
			}
			if name, ok := keyName(m.Key); ok && callable(m.Initializer) {
				out = append(out, name)
			}
		}
	}
	return out
}

func boundObjects(list []*ast.Binding) []class {
	var out []class
	for _, b := range list {
		id, ok := b.Target.(*ast.Identifier)
		if !ok {
			continue
		}
		obj, ok := b.Initializer.(*ast.ObjectLiteral)
		if !ok {
			continue
		}
		c := class{name: id.Name.String()}
		for _, p := range obj.Value {
			prop, ok := p.(*ast.PropertyKeyed)
			if !ok || prop.Computed {
				continue
			}
			if prop.Kind != ast.PropertyKindValue && prop.Kind != ast.PropertyKindMethod {
				continue
			}
			if name, ok := keyName(prop.Key); ok && callable(prop.Value) {
				c.methods = append(c.methods, name)
			}
		}
		out = append(out, c)
	}
	return out
}

// keyName returns the name of a plain property key. Private names are
// rejected.
func keyName(key ast.Expression) (string, bool) {
	switch k := key.(type) {
	case *ast.StringLiteral:
		return k.Value.String(), true
	case *ast.Identifier:
		return k.Name.String(), true
	default:
		return "", false
	}
}

func callable(e ast.Expression) bool {
	switch fn := e.(type) {
	case *ast.FunctionLiteral:
		return !fn.Async && !fn.Generator && noParams(fn.ParameterList)
	case *ast.ArrowFunctionLiteral:
		return !fn.Async && noParams(fn.ParameterList)
	default:
		return false
	}
}

func noParams(p *ast.ParameterList) bool {
	return p == nil || (len(p.List) == 0 && p.Rest == nil)
}
