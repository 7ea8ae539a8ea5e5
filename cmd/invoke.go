package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"wirebridge/internal/stepdef"
	"wirebridge/internal/table"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	TableFile string
}

func newInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <id> [arg...]",
		Short: "Invoke one step definition by id",
		Long: `Invoke one step definition by id with string arguments and an optional
table, given as a YAML or JSON array of arrays.

Example:
  wirebridge invoke 2 3 --table basket.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return invokeStep(cmd, opts, args[0], args[1:])
		},
	}
	cmd.Flags().StringVar(&opts.TableFile, "table", "", "table argument file (YAML or JSON)")
	return cmd
}

func invokeStep(cmd *cobra.Command, opts *InvokeOptions, id string, values []string) error {
	stepArgs := make([]stepdef.Arg, 0, len(values)+1)
	for _, v := range values {
		stepArgs = append(stepArgs, stepdef.String(v))
	}
	if opts.TableFile != "" {
		t, err := readTable(opts.TableFile)
		if err != nil {
			return err
		}
		stepArgs = append(stepArgs, stepdef.TableArg(t))
	}

	sess, err := opts.connect(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	def, ok := sess.Registry.Lookup(id)
	if !ok {
		return fmt.Errorf("no step definition with id %q", id)
	}

	p := newPrinter(cmd.OutOrStdout(), opts.NoColor)
	err = def.Invoke(cmd.Context(), stepArgs)
	outcome := stepdef.OutcomeOf(err)
	if err == nil {
		p.printf("[green]%s[reset] %s\n", outcome, def)
		return nil
	}
	p.printf("[red]%s[reset] %s\n", outcome, def)
	p.failure(err, "  ")
	return fmt.Errorf("step %s: %s", def.ID(), outcome)
}

func readTable(path string) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	var t table.Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse table %s: %w", path, err)
	}
	return &t, nil
}
