// Package javascript provides the JavaScript backend, built on goja.
//
// A class is a top-level class declaration or an object literal bound with
// const, let or var. Its entry points are static methods (or object literal
// functions) that take no parameters:
//
//	class Program {
//	  static Main() {
//	    console.log("hello");
//	  }
//	}
package javascript

import (
	"context"
	_ "embed"
	"errors"

	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"

	"github.com/caffeineduck/hotrun/diag"
	"github.com/caffeineduck/hotrun/executor"
	"github.com/caffeineduck/hotrun/hostfunc"
	"github.com/caffeineduck/hotrun/internal/ctxlog"
)

//go:embed template.js
var template string

// Diagnostic codes.
const (
	CodeSyntax  = "JS1001"
	CodeCompile = "JS1002"
)

// JavaScript implements the executor.Language interface.
type JavaScript struct{}

// New returns a JavaScript backend.
func New() *JavaScript {
	return &JavaScript{}
}

func (j *JavaScript) Tag() executor.Tag { return executor.JavaScript }

func (j *JavaScript) Name() string { return "JavaScript" }

func (j *JavaScript) Extensions() []string { return []string{".js", ".mjs"} }

// Template returns a wave animation that runs until stopped.
func (j *JavaScript) Template() string { return template }

// Compile parses src and compiles it to a goja program.
func (j *JavaScript) Compile(ctx context.Context, src executor.Source, libs []hostfunc.Library) (executor.Unit, error) {
	name := src.Name
	if name == "" {
		name = "main.js"
	}

	tree, err := parser.ParseFile(nil, name, src.Text, 0)
	if err != nil {
		return nil, syntaxError(name, err)
	}

	prog, err := goja.CompileAST(tree, false)
	if err != nil {
		return nil, compileError(name, err)
	}

	u := &unit{prog: prog, libs: libs, symbols: executor.NewSymbols()}
	for _, c := range collectClasses(tree) {
		class := u.symbols.Define(c.name)
		for _, m := range c.methods {
			class.Define(m, u.invoker(c.name, m))
		}
	}

	ctxlog.FromContext(ctx).Debug("javascript unit compiled", "classes", u.symbols.Classes())
	return u, nil
}

func syntaxError(name string, err error) error {
	var list parser.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		raws := make([]diag.Raw, 0, len(list))
		for _, e := range list {
			raws = append(raws, diag.Raw{
				File:    name,
				Line:    e.Position.Line,
				Column:  e.Position.Column,
				Code:    CodeSyntax,
				Message: e.Message,
			})
		}
		return &executor.CompilationError{Diagnostics: diag.Format(raws)}
	}

	raw := diag.Raw{File: name, Code: CodeSyntax, Message: err.Error()}
	var single *parser.Error
	if errors.As(err, &single) {
		raw.Line, raw.Column, raw.Message = single.Position.Line, single.Position.Column, single.Message
	}
	return &executor.CompilationError{Diagnostics: diag.Format([]diag.Raw{raw})}
}

func compileError(name string, err error) error {
	raw := diag.Raw{File: name, Code: CodeCompile, Message: err.Error()}
	var se *goja.CompilerSyntaxError
	if errors.As(err, &se) {
		raw.Message = se.Message
		if se.File != nil {
			pos := se.File.Position(se.Offset)
			raw.Line, raw.Column = pos.Line, pos.Column
		}
	}
	return &executor.CompilationError{Diagnostics: diag.Format([]diag.Raw{raw})}
}

type unit struct {
	prog    *goja.Program
	libs    []hostfunc.Library
	symbols *executor.Symbols
}

func (u *unit) Language() executor.Tag     { return executor.JavaScript }
func (u *unit) Symbols() *executor.Symbols { return u.symbols }
