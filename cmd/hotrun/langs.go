package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newLangsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "langs",
		Short: "List the supported languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.newSession(nil)
			if err != nil {
				return err
			}
			defer s.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TAG\tNAME\tEXTENSIONS")
			for _, lang := range s.Languages() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", lang.Tag(), lang.Name(), strings.Join(lang.Extensions(), " "))
			}
			return tw.Flush()
		},
	}
}
