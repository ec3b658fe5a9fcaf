// Package starlark provides the Starlark backend, built on go.starlark.net.
//
// A class is a global bound to struct(...) or module(...). Its entry points
// are members that refer to a top-level def, or a lambda, taking no
// parameters:
//
//	def main():
//	    console.log("hello")
//
//	Program = struct(Main = main)
package starlark

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/resolve"
	starlarkgo "go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/caffeineduck/hotrun/console"
	"github.com/caffeineduck/hotrun/diag"
	"github.com/caffeineduck/hotrun/executor"
	"github.com/caffeineduck/hotrun/hostfunc"
	"github.com/caffeineduck/hotrun/internal/ctxlog"
)

//go:embed template.star
var template string

// Diagnostic codes.
const (
	CodeSyntax  = "STAR1001"
	CodeResolve = "STAR1002"
)

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// builtins are predeclared in every unit alongside the referenced libraries.
func builtins() starlarkgo.StringDict {
	return starlarkgo.StringDict{
		"struct": starlarkgo.NewBuiltin("struct", starlarkstruct.Make),
		"module": starlarkgo.NewBuiltin("module", starlarkstruct.MakeModule),
		"math":   starlarkmath.Module,
	}
}

// Starlark implements the executor.Language interface.
type Starlark struct{}

// New returns a Starlark backend.
func New() *Starlark {
	return &Starlark{}
}

func (s *Starlark) Tag() executor.Tag { return executor.Starlark }

func (s *Starlark) Name() string { return "Starlark" }

func (s *Starlark) Extensions() []string { return []string{".star", ".bzl"} }

// Template returns a wave animation that runs until stopped.
func (s *Starlark) Template() string { return template }

// Compile parses and resolves src. Referenced libraries are predeclared, so
// using one that is not referenced fails here rather than at run time.
func (s *Starlark) Compile(ctx context.Context, src executor.Source, libs []hostfunc.Library) (executor.Unit, error) {
	name := src.Name
	if name == "" {
		name = "main.star"
	}

	predeclared := builtins()
	for _, lib := range libs {
		predeclared[lib.Name] = starlarkgo.None
	}

	file, prog, err := starlarkgo.SourceProgramOptions(fileOptions, name, src.Text, predeclared.Has)
	if err != nil {
		return nil, compileError(name, err)
	}

	u := &unit{prog: prog, libs: libs, symbols: executor.NewSymbols()}
	for _, c := range collectClasses(file) {
		class := u.symbols.Define(c.name)
		for _, m := range c.methods {
			class.Define(m, u.invoker(c.name, m))
		}
	}

	ctxlog.FromContext(ctx).Debug("starlark unit compiled", "classes", u.symbols.Classes())
	return u, nil
}

func compileError(name string, err error) error {
	var se syntax.Error
	if errors.As(err, &se) {
		return &executor.CompilationError{Diagnostics: diag.Format([]diag.Raw{{
			File:    name,
			Line:    int(se.Pos.Line),
			Column:  int(se.Pos.Col),
			Code:    CodeSyntax,
			Message: se.Msg,
		}})}
	}

	var list resolve.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		raws := make([]diag.Raw, 0, len(list))
		for _, e := range list {
			raws = append(raws, diag.Raw{
				File:    name,
				Line:    int(e.Pos.Line),
				Column:  int(e.Pos.Col),
				Code:    CodeResolve,
				Message: e.Msg,
			})
		}
		return &executor.CompilationError{Diagnostics: diag.Format(raws)}
	}

	return &executor.CompilationError{Diagnostics: diag.Format([]diag.Raw{{
		File: name, Code: CodeSyntax, Message: err.Error(),
	}})}
}

type unit struct {
	prog    *starlarkgo.Program
	libs    []hostfunc.Library
	symbols *executor.Symbols
}

func (u *unit) Language() executor.Tag     { return executor.Starlark }
func (u *unit) Symbols() *executor.Symbols { return u.symbols }

// invoker initializes the program's globals on a fresh thread and then calls
// the member.
func (u *unit) invoker(class, method string) executor.Invoker {
	return func(ctx context.Context) error {
		out := console.FromContext(ctx)
		thread := &starlarkgo.Thread{
			Name: class + "." + method,
			Print: func(_ *starlarkgo.Thread, msg string) {
				fmt.Fprintln(out, msg)
			},
		}

		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				thread.Cancel(ctx.Err().Error())
			case <-done:
			}
		}()

		predeclared := builtins()
		for _, lib := range u.libs {
			predeclared[lib.Name] = libraryModule(ctx, lib)
		}

		globals, err := u.prog.Init(thread, predeclared)
		if err != nil {
			return scriptError(ctx, err)
		}

		target, ok := globals[class].(starlarkgo.HasAttrs)
		if !ok {
			return fmt.Errorf("%s has no attributes", class)
		}
		fn, err := target.Attr(method)
		if err != nil {
			return scriptError(ctx, err)
		}
		if fn == nil {
			return fmt.Errorf("%s has no member %s", class, method)
		}
		if _, err := starlarkgo.Call(thread, fn, nil, nil); err != nil {
			return scriptError(ctx, err)
		}
		return nil
	}
}

// scriptError reports cancellation as the context's error so the host can
// tell a stop from a fault.
func scriptError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var ee *starlarkgo.EvalError
	if errors.As(err, &ee) {
		return errors.New(ee.Backtrace())
	}
	return err
}
