package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/chazu/shadegraph/pkg/compiler"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check SCRIPT",
		Short: "Report problems in a graph script without compiling it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := opts.load(args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			diags := compiler.Check(opts.reg, g)
			if len(diags) == 0 {
				color.New(color.FgGreen).Fprintf(w, "✓ %s: %d nodes, %d connections\n",
					args[0], g.NodeCount(), len(g.Connections()))
				return nil
			}

			errs := 0
			red, yellow := color.New(color.FgRed), color.New(color.FgYellow)
			for _, d := range diags {
				c := yellow
				if d.Severity == compiler.SeverityError {
					c = red
					errs++
				}
				c.Fprintln(w, d.Error())
			}
			if errs > 0 {
				return errors.Errorf("%s: %d errors", args[0], errs)
			}
			fmt.Fprintf(w, "%s: %d warnings\n", args[0], len(diags))
			return nil
		},
	}
}
