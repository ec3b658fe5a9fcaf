// Package lua provides the Lua backend, built on gopher-lua.
//
// A class is a global table. Its entry points are functions with no
// parameters defined in the table constructor or with function statements:
//
//	Program = {}
//
//	function Program.Main()
//	  console.log("hello")
//	end
//
// Colon methods (function Program:Main()) are called with the table as self.
package lua

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/caffeineduck/hotrun/console"
	"github.com/caffeineduck/hotrun/diag"
	"github.com/caffeineduck/hotrun/executor"
	"github.com/caffeineduck/hotrun/hostfunc"
	"github.com/caffeineduck/hotrun/internal/ctxlog"
)

//go:embed template.lua
var template string

// Diagnostic codes.
const (
	CodeSyntax  = "LUA1001"
	CodeCompile = "LUA1002"
)

// Lua implements the executor.Language interface.
type Lua struct{}

// New returns a Lua backend.
func New() *Lua {
	return &Lua{}
}

func (l *Lua) Tag() executor.Tag { return executor.Lua }

func (l *Lua) Name() string { return "Lua" }

func (l *Lua) Extensions() []string { return []string{".lua"} }

// Template returns a wave animation that runs until stopped.
func (l *Lua) Template() string { return template }

// Compile parses and compiles src to a function prototype. Nothing runs until
// an entry point is invoked.
func (l *Lua) Compile(ctx context.Context, src executor.Source, libs []hostfunc.Library) (executor.Unit, error) {
	name := src.Name
	if name == "" {
		name = "main.lua"
	}

	chunk, err := parse.Parse(strings.NewReader(src.Text), name)
	if err != nil {
		return nil, syntaxError(name, src.Text, err)
	}

	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, compileError(name, err)
	}

	u := &unit{proto: proto, libs: libs, symbols: executor.NewSymbols()}
	for _, m := range collectMethods(chunk) {
		class := u.symbols.Define(m.class)
		if m.method != "" {
			class.Define(m.method, u.invoker(m))
		}
	}

	ctxlog.FromContext(ctx).Debug("lua unit compiled", "classes", u.symbols.Classes())
	return u, nil
}

func syntaxError(name, text string, err error) error {
	var pe *parse.Error
	if !errors.As(err, &pe) {
		return &executor.CompilationError{Diagnostics: diag.Format([]diag.Raw{{
			File: name, Code: CodeSyntax, Message: err.Error(),
		}})}
	}

	line, col := pe.Pos.Line, pe.Pos.Column
	if line <= 0 {
		// Errors at end of input carry no usable position.
		line, col = strings.Count(text, "\n")+1, 0
	}
	msg := pe.Message
	if pe.Token != "" {
		msg = fmt.Sprintf("%s near '%s'", msg, pe.Token)
	}
	return &executor.CompilationError{Diagnostics: diag.Format([]diag.Raw{{
		File: name, Line: line, Column: col, Code: CodeSyntax, Message: msg,
	}})}
}

func compileError(name string, err error) error {
	raw := diag.Raw{File: name, Code: CodeCompile, Message: err.Error()}
	var ce *lua.CompileError
	if errors.As(err, &ce) {
		raw.Line = ce.Line
		raw.Message = ce.Message
	}
	return &executor.CompilationError{Diagnostics: diag.Format([]diag.Raw{raw})}
}

type unit struct {
	proto   *lua.FunctionProto
	libs    []hostfunc.Library
	symbols *executor.Symbols
}

func (u *unit) Language() executor.Tag     { return executor.Lua }
func (u *unit) Symbols() *executor.Symbols { return u.symbols }

// invoker runs the chunk in a fresh state and then calls the method.
func (u *unit) invoker(m method) executor.Invoker {
	return func(ctx context.Context) error {
		L := u.newState(ctx)
		defer L.Close()

		if err := L.CallByParam(lua.P{Fn: L.NewFunctionFromProto(u.proto), NRet: 0, Protect: true}); err != nil {
			return scriptError(ctx, err)
		}

		class, ok := L.GetGlobal(m.class).(*lua.LTable)
		if !ok {
			return fmt.Errorf("%s is not a table", m.class)
		}
		fn, ok := L.GetField(class, m.method).(*lua.LFunction)
		if !ok {
			return fmt.Errorf("%s.%s is not a function", m.class, m.method)
		}

		var args []lua.LValue
		if m.self {
			args = append(args, class)
		}
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...); err != nil {
			return scriptError(ctx, err)
		}
		return nil
	}
}

// newState opens only the libraries that cannot reach the host system.
func (u *unit) newState(ctx context.Context) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{lua.CoroutineLibName, lua.OpenCoroutine},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	// Loading code from disk or strings bypasses compilation.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "module", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	out := console.FromContext(ctx)
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, n)
		for i := 1; i <= n; i++ {
			parts[i-1] = L.ToStringMeta(L.Get(i)).String()
		}
		fmt.Fprintln(out, strings.Join(parts, "\t"))
		return 0
	}))

	for _, lib := range u.libs {
		L.SetGlobal(lib.Name, libraryTable(ctx, L, lib))
	}

	L.SetContext(ctx)
	return L
}

// scriptError unwraps a Lua error. Cancellation is reported as the context's
// error so the host can tell a stop from a fault.
func scriptError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var ae *lua.ApiError
	if errors.As(err, &ae) && ae.Object != nil {
		return errors.New(ae.Object.String())
	}
	return err
}
