package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/hotrun/diag"
	"github.com/caffeineduck/hotrun/executor"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		eval   string
		class  string
		method string
		sf     sessionFlags
	)

	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Compile a program and run its entry point",
		Long: `Compile a program, resolve its entry point and run it until it returns,
times out or is interrupted. Console output goes to stdout.

Code can be provided via:
  - File argument: hotrun run wave.lua
  - Inline flag:   hotrun run -l js -e 'class Program { static Main() { console.log(1) } }'
  - Stdin:         cat wave.star | hotrun run -l starlark`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sf.apply(cmd.Flags(), &a.cfg); err != nil {
				return err
			}
			if cmd.Flags().Changed("class") {
				a.cfg.Run.Class = class
			}
			if cmd.Flags().Changed("method") {
				a.cfg.Run.Method = method
			}

			src, filename, err := readSource(cmd, eval, args)
			if err != nil {
				return err
			}
			return a.run(cmd, src, filename)
		},
	}

	cmd.Flags().StringVarP(&eval, "eval", "e", "", "Source to run")
	cmd.Flags().StringVar(&class, "class", executor.DefaultClass, "Entry point class")
	cmd.Flags().StringVar(&method, "method", executor.DefaultMethod, "Entry point method")
	sf.register(cmd.Flags())
	return cmd
}

func (a *app) run(cmd *cobra.Command, text, filename string) error {
	out := cmd.OutOrStdout()
	s, err := a.newSession(out)
	if err != nil {
		return err
	}
	defer s.Close()

	lang, err := a.language(s.Selector(), filename)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := s.Run(ctx, executor.Request{
		Source: source(lang, filename, text),
		Class:  a.cfg.Run.Class,
		Method: a.cfg.Run.Method,
	})
	if err != nil {
		return a.report(cmd, err)
	}

	select {
	case <-h.Done():
	case <-ctx.Done():
		a.logger.Debug("interrupted, stopping run", "run", h.ID())
		s.Stop()
	}

	a.logger.Debug("run finished", "run", h.ID(), "duration", h.Duration())
	return h.Err()
}

// report renders compilation diagnostics to stderr and passes err through.
func (a *app) report(cmd *cobra.Command, err error) error {
	var ce *executor.CompilationError
	if errors.As(err, &ce) {
		w := cmd.ErrOrStderr()
		if werr := diag.WriteText(w, ce.Diagnostics, diag.TextOptions{Color: isTerminal(w)}); werr != nil {
			return werr
		}
	}
	return err
}

func source(lang executor.Language, filename, text string) executor.Source {
	name := filename
	if name == "" {
		name = "main" + lang.Extensions()[0]
	}
	return executor.Source{Name: name, Text: text, Language: lang.Tag()}
}

// readSource takes the program from --eval, a file argument or piped stdin,
// in that order.
func readSource(cmd *cobra.Command, eval string, args []string) (text, filename string, err error) {
	switch {
	case eval != "":
		return eval, "", nil
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", err
		}
		return string(data), args[0], nil
	}

	in := cmd.InOrStdin()
	if isTerminal(in) {
		return "", "", errors.New("no source: pass a file, --eval or pipe a program on stdin")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", "", fmt.Errorf("read stdin: %w", err)
	}
	if len(data) == 0 {
		return "", "", errors.New("no source: stdin is empty")
	}
	return string(data), "", nil
}
