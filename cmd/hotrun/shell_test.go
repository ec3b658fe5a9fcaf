package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/caffeineduck/hotrun/executor"
	"github.com/caffeineduck/hotrun/internal/config"
)

// syncBuffer is written by the shell and by the running program at once.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testApp() *app {
	return &app{cfg: config.Defaults(), logger: slog.New(slog.DiscardHandler)}
}

func newTestShell(t *testing.T) (*shell, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	sh, err := newShell(testApp(), out)
	if err != nil {
		t.Fatalf("failed to create shell: %v", err)
	}
	t.Cleanup(sh.close)
	return sh, out
}

func feed(sh *shell, lines ...string) {
	for _, l := range lines {
		sh.exec(context.Background(), l)
	}
}

func waitDone(t *testing.T, h *executor.Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestShellRun(t *testing.T) {
	sh, out := newTestShell(t)

	feed(sh, ":lang lua")
	feed(sh, strings.Split(strings.TrimSpace(luaHello), "\n")...)
	feed(sh, ":run")

	if sh.handle == nil {
		t.Fatalf("expected a run to start, output:\n%s", out.String())
	}
	waitDone(t, sh.handle)

	if !strings.Contains(out.String(), "hello") {
		t.Errorf("expected program output, got:\n%s", out.String())
	}

	feed(sh, ":status")
	if !strings.Contains(out.String(), "Program.Main stopped") {
		t.Errorf("expected status line, got:\n%s", out.String())
	}
}

func TestShellNewRunStop(t *testing.T) {
	sh, out := newTestShell(t)

	feed(sh, ":lang starlark", ":new", ":run")
	if !sh.running() {
		t.Fatalf("expected template to be running, output:\n%s", out.String())
	}
	first := sh.handle

	// A second run supersedes the first.
	feed(sh, ":run")
	if first.State() != executor.Stopped {
		t.Errorf("expected first run stopped, got %v", first.State())
	}
	if first.Err() != nil {
		t.Errorf("expected superseded run not to fault, got %v", first.Err())
	}

	feed(sh, ":stop")
	if sh.running() {
		t.Error("expected nothing running after :stop")
	}
	if !strings.Contains(out.String(), "stopped") {
		t.Errorf("expected stop message, got:\n%s", out.String())
	}

	feed(sh, ":stop")
	if !strings.Contains(out.String(), "nothing running") {
		t.Errorf("expected nothing running, got:\n%s", out.String())
	}
}

func TestShellCheck(t *testing.T) {
	sh, out := newTestShell(t)

	feed(sh, ":lang lua", "x = = 1", ":check")
	if !strings.Contains(out.String(), "LUA1001") {
		t.Errorf("expected syntax diagnostic, got:\n%s", out.String())
	}

	feed(sh, ":clear", "Program = {}", "function Program.Main() end", ":check")
	if !strings.Contains(out.String(), "Program.Main") {
		t.Errorf("expected entry point listing, got:\n%s", out.String())
	}
}

func TestShellEntryPointSettings(t *testing.T) {
	sh, out := newTestShell(t)

	feed(sh, ":lang javascript", `class App { static Go() { console.log("went") } }`, ":class App", ":method Go", ":run")
	if sh.handle == nil {
		t.Fatalf("expected a run to start, output:\n%s", out.String())
	}
	waitDone(t, sh.handle)
	if !strings.Contains(out.String(), "went") {
		t.Errorf("expected program output, got:\n%s", out.String())
	}

	feed(sh, ":method Missing", ":run")
	if !strings.Contains(out.String(), `no public zero-argument method "Missing"`) {
		t.Errorf("expected entry point error, got:\n%s", out.String())
	}
}

func TestShellReferences(t *testing.T) {
	sh, out := newTestShell(t)

	feed(sh, ":ref -time")
	if got := sh.s.References(); len(got) != 1 || got[0] != "console" {
		t.Errorf("expected only console, got %v", got)
	}

	feed(sh, ":ref +time +kv")
	if !strings.Contains(out.String(), `no library "kv"`) {
		t.Errorf("expected warning for unavailable kv, got:\n%s", out.String())
	}
	if got := strings.Join(sh.s.References(), ","); got != "console,kv,time" {
		t.Errorf("expected console,kv,time, got %s", got)
	}
}

func TestShellLoadAndSave(t *testing.T) {
	sh, out := newTestShell(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "prog.lua")
	if err := os.WriteFile(src, []byte(luaHello), 0o644); err != nil {
		t.Fatal(err)
	}

	feed(sh, ":lang javascript", ":load "+src)
	if sh.lang.Tag() != executor.Lua {
		t.Errorf("expected language from extension, got %v", sh.lang.Tag())
	}

	feed(sh, ":show")
	if !strings.Contains(out.String(), "   1  Program = {}") {
		t.Errorf("expected numbered listing, got:\n%s", out.String())
	}

	dst := filepath.Join(dir, "copy.lua")
	feed(sh, ":save "+dst)
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("buffer not saved: %v", err)
	}
	if string(data) != luaHello {
		t.Errorf("expected saved buffer to match, got %q", data)
	}
}

func TestShellMisc(t *testing.T) {
	sh, out := newTestShell(t)

	feed(sh, ":status", ":bogus", ":lang cobol", ":help")
	for _, phrase := range []string{"no run yet", "unknown command :bogus", "unsupported language", ":check"} {
		if !strings.Contains(out.String(), phrase) {
			t.Errorf("expected %q in output, got:\n%s", phrase, out.String())
		}
	}

	if !sh.exec(context.Background(), ":quit") {
		t.Error("expected :quit to end the shell")
	}
}
