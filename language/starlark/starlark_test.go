package starlark

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/caffeineduck/hotrun/executor"
)

func newSession(t *testing.T, opts ...executor.SessionOption) *executor.Session {
	t.Helper()
	s, err := executor.NewSession(append([]executor.SessionOption{executor.WithLanguages(New())}, opts...)...)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func source(text string) executor.Source {
	return executor.Source{Name: "main.star", Text: text, Language: executor.Starlark}
}

func run(t *testing.T, s *executor.Session, text string) error {
	t.Helper()
	h, err := s.Run(context.Background(), executor.Request{Source: source(text)})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.Wait(ctx)
}

func TestStarlarkSyntaxErrorLine(t *testing.T) {
	s := newSession(t)

	_, err := s.Compile(context.Background(), source(`def main():
    x = 1

    # the next line is broken
    x = = 2

Program = struct(Main = main)
`))
	var ce *executor.CompilationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompilationError, got %v", err)
	}
	d := ce.Diagnostics[0]
	if d.Line != 5 {
		t.Errorf("expected line 5, got %v", d)
	}
	if d.Code != CodeSyntax {
		t.Errorf("expected code %s, got %s", CodeSyntax, d.Code)
	}
}

func TestStarlarkResolveError(t *testing.T) {
	s := newSession(t)

	_, err := s.Compile(context.Background(), source("def main():\n    undefined_thing()\n\nProgram = struct(Main = main)\n"))
	var ce *executor.CompilationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompilationError, got %v", err)
	}
	d := ce.Diagnostics[0]
	if d.Code != CodeResolve || d.Line != 2 {
		t.Errorf("expected %s on line 2, got %v", CodeResolve, d)
	}
}

func TestStarlarkUnreferencedLibraryFailsCompile(t *testing.T) {
	s := newSession(t)
	s.SetReferences("console")

	_, err := s.Compile(context.Background(), source(New().Template()))
	var ce *executor.CompilationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompilationError, got %v", err)
	}
	if !strings.Contains(ce.Diagnostics[0].Message, "time") {
		t.Errorf("expected diagnostic to name time, got %v", ce.Diagnostics[0])
	}
}

func TestStarlarkResolve(t *testing.T) {
	s := newSession(t)

	_, err := s.Compile(context.Background(), source(`
def main():
    pass

def with_arg(x):
    pass

Program = struct(
    Main = main,
    WithArg = with_arg,
    Lam = lambda: None,
    LamArg = lambda x: x,
    _Priv = main,
    Value = 1,
)

Mod = module("Mod", Run = main)
_Private = struct(Main = main)
`))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	for _, ref := range [][2]string{{"Program", "Main"}, {"Program", "Lam"}, {"Mod", "Run"}} {
		if _, err := s.Resolve(ref[0], ref[1]); err != nil {
			t.Errorf("expected %s.%s to resolve, got %v", ref[0], ref[1], err)
		}
	}
	for _, m := range []string{"WithArg", "LamArg", "_Priv", "Value", "main", "Run"} {
		if _, err := s.Resolve("Program", m); !executor.IsNotFound(err, executor.KindMethod) {
			t.Errorf("expected Program.%s to be missing, got %v", m, err)
		}
	}
	for _, c := range []string{"Prog", "program", "_Private"} {
		if _, err := s.Resolve(c, "Main"); !executor.IsNotFound(err, executor.KindClass) {
			t.Errorf("expected class %s to be missing, got %v", c, err)
		}
	}
}

func TestStarlarkPrintAndConsole(t *testing.T) {
	s := newSession(t)

	err := run(t, s, `
def main():
    print("a", 1)
    console.log("b", 2.5, None)
    console.write("c")

Program = struct(Main = main)
`)
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	want := "a 1\nb 2.5 null\nc"
	if got := s.Console().String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestStarlarkLambdaEntry(t *testing.T) {
	s := newSession(t)

	h, err := s.Run(context.Background(), executor.Request{
		Source: source(`Program = struct(Go = lambda: print("lambda ran"))`),
		Method: "Go",
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if got := strings.TrimSpace(s.Console().String()); got != "lambda ran" {
		t.Errorf("expected %q, got %q", "lambda ran", got)
	}
}

func TestStarlarkFault(t *testing.T) {
	s := newSession(t)

	err := run(t, s, `
def main():
    fail("boom")

Program = struct(Main = main)
`)
	if !errors.Is(err, executor.ErrExecutionFault) {
		t.Fatalf("expected execution fault, got %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected fault to mention boom, got %v", err)
	}
}

func TestStarlarkSelfReferencingValuesFault(t *testing.T) {
	s := newSession(t)

	for _, body := range []string{
		"    l = []\n    l.append(l)\n    console.log(l)\n",
		"    d = {}\n    d[\"me\"] = d\n    console.log(d)\n",
	} {
		err := run(t, s, "def main():\n"+body+"\nProgram = struct(Main = main)\n")
		if !errors.Is(err, executor.ErrExecutionFault) {
			t.Fatalf("expected execution fault, got %v", err)
		}
		if !strings.Contains(err.Error(), "nested deeper than") {
			t.Errorf("expected nesting error, got %v", err)
		}
	}

	// The session is still usable afterwards.
	if err := run(t, s, "def main():\n    console.log([1, (2, {\"a\": [3]})])\n\nProgram = struct(Main = main)\n"); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if got := s.Console().String(); !strings.Contains(got, "3") {
		t.Errorf("expected nested value to print, got %q", got)
	}
}

func TestStarlarkStopTightLoop(t *testing.T) {
	s := newSession(t)

	h, err := s.Run(context.Background(), executor.Request{Source: source(`
def main():
    while True:
        pass

Program = struct(Main = main)
`)})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if h.State() != executor.Running {
		t.Fatalf("expected running, got %v", h.State())
	}

	time.Sleep(20 * time.Millisecond)
	s.Stop()

	if h.State() != executor.Stopped {
		t.Errorf("expected stopped, got %v", h.State())
	}
	if h.Err() != nil {
		t.Errorf("expected no fault after stop, got %v", h.Err())
	}
}

func TestStarlarkLibraries(t *testing.T) {
	s := newSession(t, executor.WithSessionKV())
	s.AddReference("kv")

	err := run(t, s, `
def main():
    kv.set("n", 41)
    kv.set(key = "list", value = [1, 2, 3])
    print(kv.get("n") + 1, len(kv.get("list")), kv.get(key = "missing", default = "none"))

Program = struct(Main = main)
`)
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if got := strings.TrimSpace(s.Console().String()); got != "42 3 none" {
		t.Errorf("expected %q, got %q", "42 3 none", got)
	}
}

func TestStarlarkTemplate(t *testing.T) {
	s := newSession(t)

	h, err := s.Run(context.Background(), executor.Request{Source: source(New().Template())})
	if err != nil {
		t.Fatalf("template failed to start: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if h.Err() != nil {
		t.Errorf("expected template to run until stopped, got %v", h.Err())
	}
}
