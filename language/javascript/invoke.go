package javascript

import (
	"context"
	"fmt"

	"github.com/dop251/goja"

	"github.com/caffeineduck/hotrun/executor"
	"github.com/caffeineduck/hotrun/hostfunc"
)

// maxCallStackSize bounds recursion so runaway scripts fail instead of
// exhausting the goroutine stack.
const maxCallStackSize = 4096

// invoker runs the program in a fresh runtime and then calls class.method
// with the class as this.
func (u *unit) invoker(class, method string) executor.Invoker {
	return func(ctx context.Context) error {
		vm := goja.New()
		vm.SetMaxCallStackSize(maxCallStackSize)
		for _, lib := range u.libs {
			if err := vm.Set(lib.Name, libraryObject(ctx, vm, lib)); err != nil {
				return fmt.Errorf("install %s: %w", lib.Name, err)
			}
		}

		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				vm.Interrupt(ctx.Err())
			case <-done:
			}
		}()

		if _, err := vm.RunProgram(u.prog); err != nil {
			return scriptError(ctx, err)
		}

		// Class and lexical bindings are not properties of the global
		// object, so the name is evaluated rather than looked up.
		v, err := vm.RunString(class)
		if err != nil {
			return scriptError(ctx, err)
		}
		if goja.IsUndefined(v) || goja.IsNull(v) {
			return fmt.Errorf("%s is not defined", class)
		}
		obj := v.ToObject(vm)
		fn, ok := goja.AssertFunction(obj.Get(method))
		if !ok {
			return fmt.Errorf("%s.%s is not a function", class, method)
		}
		if _, err := fn(obj); err != nil {
			return scriptError(ctx, err)
		}
		return nil
	}
}

// scriptError reports cancellation as the context's error so the host can
// tell a stop from a fault. Interrupts only happen on cancellation.
func scriptError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// libraryObject exposes lib as an object of native functions bound to ctx.
func libraryObject(ctx context.Context, vm *goja.Runtime, lib hostfunc.Library) *goja.Object {
	obj := vm.NewObject()
	for _, name := range lib.FuncNames() {
		fn := lib.Funcs[name]
		qualified := lib.Name + "." + name
		_ = obj.Set(name, func(call goja.FunctionCall) goja.Value {
			args, err := callArgs(call)
			if err != nil {
				panic(vm.NewGoError(fmt.Errorf("%s: %w", qualified, err)))
			}
			result, err := fn(ctx, args)
			if err != nil {
				panic(vm.NewGoError(fmt.Errorf("%s: %w", qualified, err)))
			}
			v, err := hostfunc.Normalize(result)
			if err != nil {
				panic(vm.NewGoError(fmt.Errorf("%s: %w", qualified, err)))
			}
			return vm.ToValue(v)
		})
	}
	return obj
}

// callArgs applies the host calling convention: a single plain object is the
// argument map, anything else is positional.
func callArgs(call goja.FunctionCall) (map[string]any, error) {
	if len(call.Arguments) == 1 {
		if m, ok := call.Arguments[0].Export().(map[string]any); ok {
			v, err := hostfunc.Normalize(m)
			if err != nil {
				return nil, err
			}
			return v.(map[string]any), nil
		}
	}

	list := make([]any, 0, len(call.Arguments))
	for _, arg := range call.Arguments {
		list = append(list, arg.Export())
	}
	v, err := hostfunc.Normalize(list)
	if err != nil {
		return nil, err
	}
	return map[string]any{hostfunc.ArgsKey: v}, nil
}
