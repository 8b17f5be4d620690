package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chazu/shadegraph/pkg/graph"
	"github.com/chazu/shadegraph/pkg/registry"
)

func newTypesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the available node types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tINPUTS\tOUTPUTS")
			for _, name := range opts.reg.Types() {
				nt, _ := opts.reg.Lookup(name)
				outputs := socketNames(nt.Outputs)
				if nt.IsSink() {
					outputs = registry.SinkResult
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name, socketNames(nt.Inputs), outputs)
			}
			return tw.Flush()
		},
	}
}

func socketNames(ss []graph.Socket) string {
	if len(ss) == 0 {
		return "-"
	}
	names := make([]string, len(ss))
	for i, s := range ss {
		names[i] = s.Name
	}
	return strings.Join(names, ",")
}
