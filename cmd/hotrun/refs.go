package main

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRefsCmd(a *app) *cobra.Command {
	var sf sessionFlags

	cmd := &cobra.Command{
		Use:   "refs",
		Short: "List the host libraries and which are referenced",
		Long: `List every host library the session makes available and its functions.
Referenced libraries are visible to compiled code; the rest must be added
with --ref (or [run].references) before code can use them.

console and time are always available. kv, http and fs appear once enabled
with --kv, --allow-host and --mount.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := sf.apply(cmd.Flags(), &a.cfg); err != nil {
				return err
			}
			s, err := a.newSession(nil)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			mark := color.New(color.FgGreen)
			if !isTerminal(out) {
				mark.DisableColor()
			}

			refs := s.References()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LIBRARY\tREFERENCED\tFUNCTIONS")
			for _, id := range s.Libraries() {
				lib, _ := s.Library(id)
				state := "no"
				if slices.Contains(refs, id) {
					state = mark.Sprint("yes")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", id, state, strings.Join(lib.FuncNames(), ", "))
			}
			for _, id := range refs {
				if _, ok := s.Library(id); !ok {
					fmt.Fprintf(tw, "%s\t%s\t\n", id, color.New(color.FgRed).Sprint("missing"))
				}
			}
			return tw.Flush()
		},
	}

	sf.register(cmd.Flags())
	return cmd
}
