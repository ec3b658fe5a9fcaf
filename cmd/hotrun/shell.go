package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/caffeineduck/hotrun/executor"
)

const shellHelp = `Lines not starting with ':' are appended to the source buffer.

  :lang [name]        show or switch the language
  :class [name]       show or set the entry point class
  :method [name]      show or set the entry point method
  :ref [+id|-id]      list, add or remove referenced libraries
  :load <file>        replace the buffer with a file
  :save <file>        write the buffer to a file
  :new                replace the buffer with the language template
  :clear              empty the buffer
  :show               print the buffer with line numbers
  :check              compile the buffer and print diagnostics
  :run                compile the buffer and start the entry point
  :stop               stop the running program
  :status             show the state of the last run
  :quit               leave the shell
`

func newShellCmd(a *app) *cobra.Command {
	var (
		sf      sessionFlags
		history string
	)

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive editor loop with a live console",
		Long: `Start an interactive shell that holds a source buffer, compiles it on
:check and runs it on :run. A new :run stops the previous program first.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)
  - Ctrl+C stops the running program

Type :help for the command list, :quit or Ctrl+D to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := sf.apply(cmd.Flags(), &a.cfg); err != nil {
				return err
			}
			if history == "" {
				home, _ := os.UserHomeDir()
				history = filepath.Join(home, ".hotrun_history")
			}
			return a.runShell(cmd, history)
		},
	}

	cmd.Flags().StringVar(&history, "history", "", "History file path (default: ~/.hotrun_history)")
	sf.register(cmd.Flags())
	return cmd
}

func (a *app) runShell(cmd *cobra.Command, history string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       history,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         ":quit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	sh, err := newShell(a, rl.Stdout())
	if err != nil {
		return err
	}
	defer sh.close()

	fmt.Fprintf(rl.Stderr(), "hotrun shell (%s). Type :help for commands, :quit to leave.\n", sh.lang.Name())
	for {
		rl.SetPrompt(sh.prompt())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if sh.running() {
				sh.exec(cmd.Context(), ":stop")
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if sh.exec(cmd.Context(), line) {
			return nil
		}
	}
}

// shell is the editor state behind the interactive loop. It is driven one
// line at a time by exec, so it can be exercised without a terminal.
type shell struct {
	s   *executor.Session
	out io.Writer

	lang   executor.Language
	class  string
	method string
	name   string
	lines  []string
	handle *executor.Handle
}

func newShell(a *app, out io.Writer) (*shell, error) {
	sh := &shell{out: out, class: a.cfg.Run.Class, method: a.cfg.Run.Method}

	s, err := a.newSession(out, executor.WithFaultHandler(func(h *executor.Handle, err error) {
		fmt.Fprintf(sh.out, "\nrun %d faulted: %v\n", h.ID(), err)
	}))
	if err != nil {
		return nil, err
	}
	sh.s = s

	if a.cfg.Run.Language != "" {
		sh.lang, err = s.Selector().SelectName(a.cfg.Run.Language)
	} else {
		sh.lang = s.Languages()[0]
	}
	if err != nil {
		s.Close()
		return nil, err
	}
	return sh, nil
}

func (sh *shell) close() {
	sh.s.Close()
}

func (sh *shell) prompt() string {
	if sh.running() {
		return sh.lang.Tag().String() + "* > "
	}
	return sh.lang.Tag().String() + " > "
}

func (sh *shell) running() bool {
	return sh.handle != nil && sh.handle.State() == executor.Running
}

func (sh *shell) printf(format string, args ...any) {
	fmt.Fprintf(sh.out, format, args...)
}

func (sh *shell) source() string {
	return strings.Join(sh.lines, "\n") + "\n"
}

func (sh *shell) sourceName() string {
	if sh.name != "" {
		return sh.name
	}
	return "main" + sh.lang.Extensions()[0]
}

// exec handles one input line and reports whether the shell should exit.
func (sh *shell) exec(ctx context.Context, line string) bool {
	if !strings.HasPrefix(line, ":") {
		sh.lines = append(sh.lines, line)
		return false
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return false
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "q", "quit", "exit":
		return true
	case "h", "help":
		sh.printf("%s", shellHelp)
	case "lang":
		sh.cmdLang(args)
	case "class":
		if len(args) > 0 {
			sh.class = args[0]
		}
		sh.printf("class %s\n", sh.class)
	case "method":
		if len(args) > 0 {
			sh.method = args[0]
		}
		sh.printf("method %s\n", sh.method)
	case "ref":
		sh.cmdRef(args)
	case "load":
		sh.cmdLoad(args)
	case "save":
		sh.cmdSave(args)
	case "new":
		sh.lines = strings.Split(strings.TrimRight(sh.lang.Template(), "\n"), "\n")
		sh.name = ""
		sh.printf("loaded %s template (%d lines)\n", sh.lang.Name(), len(sh.lines))
	case "clear":
		sh.lines = nil
		sh.name = ""
	case "show":
		for i, l := range sh.lines {
			sh.printf("%4d  %s\n", i+1, l)
		}
	case "check":
		sh.cmdCheck(ctx)
	case "run":
		sh.cmdRun(ctx)
	case "stop":
		if !sh.running() {
			sh.printf("nothing running\n")
			break
		}
		sh.s.Stop()
		sh.printf("run %d stopped\n", sh.handle.ID())
	case "status":
		sh.cmdStatus()
	default:
		sh.printf("unknown command :%s (try :help)\n", name)
	}
	return false
}

func (sh *shell) cmdLang(args []string) {
	if len(args) > 0 {
		lang, err := sh.s.Selector().SelectName(args[0])
		if err != nil {
			sh.printf("%v\n", err)
			return
		}
		sh.lang = lang
	}
	sh.printf("language %s\n", sh.lang.Name())
}

func (sh *shell) cmdRef(args []string) {
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "-"):
			id := arg[1:]
			if !sh.s.RemoveReference(id) {
				sh.printf("%s was not referenced\n", id)
			}
		default:
			id := strings.TrimPrefix(arg, "+")
			if _, ok := sh.s.Library(id); !ok {
				sh.printf("warning: no library %q is available\n", id)
			}
			sh.s.AddReference(id)
		}
	}
	sh.printf("references: %s\n", strings.Join(sh.s.References(), ", "))
}

func (sh *shell) cmdLoad(args []string) {
	if len(args) != 1 {
		sh.printf("usage: :load <file>\n")
		return
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		sh.printf("%v\n", err)
		return
	}
	if lang, err := sh.s.Selector().ForFile(args[0]); err == nil {
		sh.lang = lang
	}
	sh.lines = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	sh.name = args[0]
	sh.printf("loaded %s (%d lines, %s)\n", args[0], len(sh.lines), sh.lang.Name())
}

func (sh *shell) cmdSave(args []string) {
	if len(args) != 1 {
		sh.printf("usage: :save <file>\n")
		return
	}
	if err := os.WriteFile(args[0], []byte(sh.source()), 0o644); err != nil {
		sh.printf("%v\n", err)
		return
	}
	sh.name = args[0]
	sh.printf("saved %s\n", args[0])
}

func (sh *shell) cmdCheck(ctx context.Context) {
	src := executor.Source{Name: sh.sourceName(), Text: sh.source(), Language: sh.lang.Tag()}
	unit, err := sh.s.Compile(ctx, src)
	if err != nil {
		sh.printError(err)
		return
	}
	writeEntryPoints(sh.out, unit)
}

func (sh *shell) cmdRun(ctx context.Context) {
	h, err := sh.s.Run(ctx, executor.Request{
		Source: executor.Source{Name: sh.sourceName(), Text: sh.source(), Language: sh.lang.Tag()},
		Class:  sh.class,
		Method: sh.method,
	})
	if err != nil {
		sh.printError(err)
		return
	}
	sh.handle = h
	sh.printf("run %d started %s.%s\n", h.ID(), sh.class, sh.method)
}

func (sh *shell) cmdStatus() {
	if sh.handle == nil {
		sh.printf("no run yet\n")
		return
	}
	h := sh.handle
	sh.printf("run %d %s.%s %s %s\n", h.ID(), h.Entry().Class, h.Entry().Method, h.State(), h.Duration().Round(time.Millisecond))
	if err := h.Err(); err != nil {
		sh.printf("fault: %v\n", err)
	}
}

func (sh *shell) printError(err error) {
	var ce *executor.CompilationError
	if errors.As(err, &ce) {
		_ = writeDiagnostics(sh.out, "text", ce.Diagnostics)
		return
	}
	sh.printf("%v\n", err)
}
