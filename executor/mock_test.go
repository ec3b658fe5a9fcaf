package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/caffeineduck/hotrun/console"
	"github.com/caffeineduck/hotrun/diag"
	"github.com/caffeineduck/hotrun/hostfunc"
)

// mockLanguage implements Language for testing session and host logic
// without a real script runtime.
//
// Each source line declares one method as "Class.Method behavior [arg]".
// A line reading "!error" produces a diagnostic at that line.
//
//	return         returns immediately
//	print text     writes text to the console
//	block          waits for cancellation
//	loop           prints "tick" every millisecond until cancelled
//	fail msg       returns an error
//	panic msg      panics
//	hang dur       ignores cancellation for dur, then prints "late"
type mockLanguage struct {
	tag      Tag
	compiles atomic.Int32
	libs     atomic.Value // []string of the last compile
	broken   string       // "nil" or "empty" to break the compile contract
}

func newMockLanguage(tag Tag) *mockLanguage {
	return &mockLanguage{tag: tag}
}

func (m *mockLanguage) Tag() Tag             { return m.tag }
func (m *mockLanguage) Name() string         { return "mock-" + m.tag.String() }
func (m *mockLanguage) Extensions() []string { return []string{".mock"} }
func (m *mockLanguage) Template() string     { return "Program.Main print hello\n" }

func (m *mockLanguage) lastLibs() []string {
	v, _ := m.libs.Load().([]string)
	return v
}

func (m *mockLanguage) Compile(ctx context.Context, src Source, libs []hostfunc.Library) (Unit, error) {
	m.compiles.Add(1)
	names := make([]string, 0, len(libs))
	for _, lib := range libs {
		names = append(names, lib.Name)
	}
	m.libs.Store(names)

	switch m.broken {
	case "nil":
		return nil, nil
	case "empty":
		return nil, &CompilationError{}
	}

	symbols := NewSymbols()
	var raws []diag.Raw
	for i, line := range strings.Split(src.Text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "!error" {
			raws = append(raws, diag.Raw{File: src.Name, Line: i + 1, Column: 1, Code: "MOCK1", Message: "syntax error"})
			continue
		}
		target, rest, _ := strings.Cut(line, " ")
		class, method, ok := strings.Cut(target, ".")
		if !ok {
			raws = append(raws, diag.Raw{File: src.Name, Line: i + 1, Column: 1, Code: "MOCK2", Message: "expected Class.Method"})
			continue
		}
		behavior, arg, _ := strings.Cut(rest, " ")
		symbols.Define(class).Define(method, mockInvoker(behavior, arg))
	}

	if len(raws) > 0 {
		return nil, &CompilationError{Diagnostics: diag.Format(raws)}
	}
	return &mockUnit{tag: m.tag, symbols: symbols}, nil
}

func mockInvoker(behavior, arg string) Invoker {
	return func(ctx context.Context) error {
		out := console.FromContext(ctx)
		switch behavior {
		case "print":
			out.Print(arg)
			return nil
		case "block":
			<-ctx.Done()
			return ctx.Err()
		case "loop":
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Millisecond):
					out.Println("tick")
				}
			}
		case "fail":
			return errors.New(arg)
		case "panic":
			panic(arg)
		case "hang":
			d, err := time.ParseDuration(arg)
			if err != nil {
				return err
			}
			time.Sleep(d)
			out.Print("late")
			return nil
		case "return", "":
			return nil
		default:
			return fmt.Errorf("unknown behavior %q", behavior)
		}
	}
}

type mockUnit struct {
	tag     Tag
	symbols *Symbols
}

func (u *mockUnit) Language() Tag     { return u.tag }
func (u *mockUnit) Symbols() *Symbols { return u.symbols }

// waitState polls h until it reaches want or the deadline passes.
func waitState(h *Handle, want State, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if h.State() == want {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return h.State() == want
}
