package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newTemplateCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "template [file]",
		Short: "Print or write a starter program",
		Long: `Print the starter program for --lang, or write it to file. When writing,
the language may be taken from the file extension.

Every template defines Program.Main and animates a wave until stopped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newSession(nil)
			if err != nil {
				return err
			}
			defer s.Close()

			var filename string
			if len(args) > 0 {
				filename = args[0]
			}
			lang, err := a.language(s.Selector(), filename)
			if err != nil {
				return err
			}

			if filename == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), lang.Template())
				return err
			}

			flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
			if force {
				flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			}
			f, err := os.OpenFile(filename, flags, 0o644)
			if err != nil {
				return err
			}
			if _, err := f.WriteString(lang.Template()); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s template to %s\n", lang.Name(), filename)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
