package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the step definitions the wire server exposes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPATTERN")
			for _, d := range sess.Registry.Definitions() {
				fmt.Fprintf(w, "%s\t/%s/\n", d.ID(), d.PatternSource())
			}
			return w.Flush()
		},
	}
}
