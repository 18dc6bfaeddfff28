package main

import (
	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/apistat/internal/depgraph"
)

func newGraphCmd(a *app) *cobra.Command {
	var (
		f      analysisFlags
		format string
	)
	cmd := &cobra.Command{
		Use:   "graph FILE",
		Short: "Export the module and re-export graph",
		Example: `  apistat graph serde.json --format dot | dot -Tsvg > serde.svg
  apistat graph serde.json --format stats`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := f.analyze(cmd, a, args[0])
			if err != nil {
				return err
			}
			g := depgraph.Analyze(res.Document, res.Table, res.Records)
			a.logger.Debug("graph built", "nodes", g.Stats.TotalNodes, "edges", g.Stats.TotalEdges)
			if n := len(g.Stats.CyclicDeps); n > 0 {
				a.logger.Warn("module dependency cycles", "count", n)
			}

			out, err := depgraph.Export(g, depgraph.Format(format))
			if err != nil {
				return usageErrorf("%v", err)
			}
			f.printTimings(cmd, res)
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "dot, mermaid, json or stats")
	return cmd
}
