package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/caffeineduck/hotrun/executor"
	"github.com/caffeineduck/hotrun/internal/config"
	"github.com/caffeineduck/hotrun/internal/logging"
	"github.com/caffeineduck/hotrun/language"
)

// app is the state shared by every subcommand: the resolved configuration
// and the logger built from it.
type app struct {
	configPath string
	lang       string
	logLevel   string
	logFormat  string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "hotrun",
		Short: "Compile and run JavaScript, Lua and Starlark against a live console",
		Long: `hotrun - Edit, compile and run small programs, one at a time.

Source is compiled in memory, an entry point (Program.Main by default) is
looked up by name and run on its own goroutine. Starting a new run stops the
previous one first. Code sees only the host libraries it references: console
and time by default, kv, http and fs when enabled.

Settings are read from hotrun.toml in the working directory or any parent,
and flags override them.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.lang, "lang", "l", "", "Language: javascript, lua, starlark (default: from file extension)")
	flags.StringVar(&a.configPath, "config", "", "Path to hotrun.toml (default: search upwards)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format: text, json")

	root.AddCommand(
		newRunCmd(a),
		newCheckCmd(a),
		newTemplateCmd(a),
		newLangsCmd(a),
		newRefsCmd(a),
		newShellCmd(a),
		newServeCmd(a),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		// Diagnostics are already rendered by the command that compiled.
		if !errors.Is(err, executor.ErrCompilation) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// setup loads the configuration and applies the persistent flags over it.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Discover(a.configPath, ".")
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("lang") {
		cfg.Run.Language = a.lang
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if cfg.Path != "" {
		logger.Debug("loaded configuration", "path", cfg.Path)
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// newSession builds a session with every built-in backend from the current
// configuration.
func (a *app) newSession(out io.Writer, extra ...executor.SessionOption) (*executor.Session, error) {
	opts := append(a.cfg.SessionOptions(),
		executor.WithLanguages(language.All()...),
		executor.WithLogger(a.logger),
	)
	if out != nil {
		opts = append(opts, executor.WithOutput(out), executor.WithANSI(a.ansi(out)))
	}
	opts = append(opts, extra...)
	return executor.NewSession(opts...)
}

// language picks the backend from the configured language, falling back to
// the extension of filename.
func (a *app) language(sel *executor.Selector, filename string) (executor.Language, error) {
	if a.cfg.Run.Language != "" {
		return sel.SelectName(a.cfg.Run.Language)
	}
	if filename != "" {
		if lang, err := sel.ForFile(filename); err == nil {
			return lang, nil
		}
	}
	names := make([]string, 0, len(sel.Languages()))
	for _, lang := range sel.Languages() {
		names = append(names, lang.Tag().String())
	}
	return nil, fmt.Errorf("language required: use --lang %s", strings.Join(names, ", --lang "))
}

func (a *app) ansi(w io.Writer) bool {
	switch a.cfg.Host.ANSI {
	case config.ANSIAlways:
		return true
	case config.ANSINever:
		return false
	default:
		return isTerminal(w)
	}
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
