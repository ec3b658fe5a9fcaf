package hostfunc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/caffeineduck/hotrun/console"
)

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.Register(ConsoleLibrary())
	r.Register(TimeLibrary())

	libs, missing := r.Resolve([]string{"time", "nope", "console"})
	if len(libs) != 2 || libs[0].Name != LibTime || libs[1].Name != LibConsole {
		t.Errorf("unexpected libraries: %+v", libs)
	}
	if diff := cmp.Diff([]string{"nope"}, missing); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{LibConsole, LibTime}, r.List()); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistry()
	r.Register(Library{Name: "x", Funcs: map[string]Func{"a": nil}})
	r.Register(Library{Name: "x", Funcs: map[string]Func{"b": nil}})

	lib, ok := r.Get("x")
	if !ok {
		t.Fatal("expected library x")
	}
	if diff := cmp.Diff([]string{"b"}, lib.FuncNames()); diff != "" {
		t.Errorf("FuncNames mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"int", 3, float64(3)},
		{"int64", int64(7), float64(7)},
		{"string map", map[string]string{"a": "b"}, map[string]any{"a": "b"}},
		{"entries", []map[string]any{{"size": int64(5)}}, []any{map[string]any{"size": float64(5)}}},
		{"strings", []string{"x", "y"}, []any{"x", "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := Normalize(make(chan int)); err == nil {
		t.Error("expected error for unsupported value")
	}
}

func TestConsoleLibrary(t *testing.T) {
	c := console.New(nil)
	ctx := console.WithWriter(context.Background(), c.Reset())
	lib := ConsoleLibrary()

	lib.Funcs["log"](ctx, map[string]any{ArgsKey: []any{"x =", float64(42), true, nil}})
	lib.Funcs["write"](ctx, map[string]any{ArgsKey: []any{1.5}})
	if got := c.String(); got != "x = 42 true null\n1.5" {
		t.Errorf("unexpected console output %q", got)
	}

	lib.Funcs["clear"](ctx, map[string]any{})
	if got := c.String(); got != "" {
		t.Errorf("expected cleared console, got %q", got)
	}
}

func TestTimeSleep(t *testing.T) {
	sleep := TimeLibrary().Funcs["sleep"]

	start := time.Now()
	if _, err := sleep(context.Background(), map[string]any{ArgsKey: []any{float64(10)}}); err != nil {
		t.Fatalf("sleep failed: %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("sleep returned too early")
	}

	if _, err := sleep(context.Background(), map[string]any{}); err == nil {
		t.Error("expected error without ms")
	}
	if _, err := sleep(context.Background(), map[string]any{"ms": float64(-1)}); err == nil {
		t.Error("expected error for negative ms")
	}
}

func TestTimeSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := TimeLibrary().Funcs["sleep"](ctx, map[string]any{"ms": float64(10_000)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("sleep did not return promptly after cancellation")
	}
}

func TestTimeNow(t *testing.T) {
	v, err := TimeLibrary().Funcs["now"](context.Background(), nil)
	if err != nil {
		t.Fatalf("now failed: %v", err)
	}
	secs := v.(float64)
	if diff := float64(time.Now().Unix()) - secs; diff < -1 || diff > 1 {
		t.Errorf("now() too far from wall clock: %v", secs)
	}
}
