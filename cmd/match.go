package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"wirebridge/internal/stepdef"
)

func newMatchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "match <step text>",
		Short: "Show which step definitions match some step text",
		Long: `Match step text against every step definition, locally first, then ask
the wire server for the arguments of each match.

Example:
  wirebridge match "I have 3 cukes in my belly"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			sess, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			p := newPrinter(cmd.OutOrStdout(), opts.NoColor)
			matches := sess.Registry.Match(text)
			if len(matches) == 0 {
				return fmt.Errorf("no step definition matches %q", text)
			}
			for _, m := range matches {
				p.printf("[bold]%s[reset]\n", m.Definition)
				p.printf("  local:  %s\n", formatArgs(m.Args))
				remote, err := m.Definition.ArgumentsFrom(cmd.Context(), text)
				if err != nil {
					p.printf("  remote: ")
					p.failure(err, "")
					continue
				}
				p.printf("  remote: %s\n", formatArgs(remote))
			}
			return nil
		},
	}
}

func formatArgs(args []stepdef.Argument) string {
	if len(args) == 0 {
		return "(none)"
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%q@%d", a.Value, a.Position)
	}
	return strings.Join(parts, " ")
}
