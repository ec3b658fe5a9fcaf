package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/hotrun/diag"
	"github.com/caffeineduck/hotrun/executor"
)

func newCheckCmd(a *app) *cobra.Command {
	var (
		eval   string
		format string
		refs   []string
	)

	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Compile a program and print its diagnostics",
		Long: `Compile a program without running it.

Diagnostics are printed to stdout as text (colored on a terminal), json or
msgpack. On success the text format also lists the entry points found.
The exit status is non-zero when compilation fails.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "json", "msgpack":
			default:
				return fmt.Errorf("unknown format %q (expected text, json or msgpack)", format)
			}
			if cmd.Flags().Changed("ref") {
				a.cfg.Run.References = refs
			}

			text, filename, err := readSource(cmd, eval, args)
			if err != nil {
				return err
			}

			s, err := a.newSession(nil)
			if err != nil {
				return err
			}
			defer s.Close()

			lang, err := a.language(s.Selector(), filename)
			if err != nil {
				return err
			}

			unit, err := s.Compile(cmd.Context(), source(lang, filename, text))
			var ce *executor.CompilationError
			if err != nil && !errors.As(err, &ce) {
				return err
			}

			var diags []diag.Diagnostic
			if ce != nil {
				diags = ce.Diagnostics
			}
			out := cmd.OutOrStdout()
			if werr := writeDiagnostics(out, format, diags); werr != nil {
				return werr
			}
			if ce == nil && format == "text" {
				writeEntryPoints(out, unit)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&eval, "eval", "e", "", "Source to check")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, msgpack")
	cmd.Flags().StringSliceVar(&refs, "ref", nil, "Referenced library (repeatable, replaces the configured set)")
	return cmd
}

func writeDiagnostics(w io.Writer, format string, diags []diag.Diagnostic) error {
	switch format {
	case "json":
		return diag.WriteJSON(w, diags)
	case "msgpack":
		return diag.WriteMsgpack(w, diags)
	default:
		return diag.WriteText(w, diags, diag.TextOptions{Color: isTerminal(w)})
	}
}

// entryPoints lists Class.Method for every resolvable method of unit.
func entryPoints(unit executor.Unit) []string {
	var out []string
	syms := unit.Symbols()
	for _, name := range syms.Classes() {
		class, _ := syms.Class(name)
		for _, m := range class.Methods() {
			out = append(out, name+"."+m)
		}
	}
	return out
}

func writeEntryPoints(w io.Writer, unit executor.Unit) {
	for _, ep := range entryPoints(unit) {
		fmt.Fprintln(w, ep)
	}
}
