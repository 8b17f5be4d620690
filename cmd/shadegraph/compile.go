package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chazu/shadegraph/pkg/shader"
)

func newCompileCmd(opts *rootOptions) *cobra.Command {
	var module, validate bool

	cmd := &cobra.Command{
		Use:   "compile SCRIPT",
		Short: "Print the program a graph script compiles to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.build(args[0])
			if err != nil {
				return err
			}

			out := p.Source()
			if module || validate {
				out = shader.Module(p, opts.cfg.Shader)
			}
			if validate {
				a, err := shader.NewCompiler(opts.cfg.Shader).Compile(p)
				if err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(), "✓ valid shader (%d SPIR-V words)\n", len(a.SPIRV))
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&module, "module", "m", false, "print the full WGSL module")
	cmd.Flags().BoolVar(&validate, "validate", false, "compile the module to SPIR-V (implies --module)")
	return cmd
}
