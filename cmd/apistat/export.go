package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/apistat/internal/analysis"
	"github.com/efebarandurmaz/apistat/internal/depgraph"
	"github.com/efebarandurmaz/apistat/internal/graph"
	"github.com/efebarandurmaz/apistat/internal/graph/neo4j"
	"github.com/efebarandurmaz/apistat/internal/graph/sqlite"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		f   analysisFlags
		to  string
		dsn string
	)
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Store classified items and the module graph in Neo4j or SQLite",
		Long: `export analyses an index and writes its items, module graph and aggregation
to a store. A crate already present in the store is replaced. Connection
settings come from the [graph] and [sqlite] config sections; --dsn overrides
the Neo4j URI or the SQLite path.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if to != "neo4j" && to != "sqlite" {
				return usageErrorf("unknown store %q (supported: neo4j, sqlite)", to)
			}
			res, err := f.analyze(cmd, a, args[0])
			if err != nil {
				return err
			}
			snap := exportSnapshot(res)

			ctx := cmd.Context()
			sink, err := a.openSink(ctx, to, dsn)
			if err != nil {
				return err
			}
			defer sink.Close(ctx)

			if err := sink.Store(ctx, snap); err != nil {
				return fmt.Errorf("export to %s: %w", to, err)
			}
			a.logger.Info("exported", "store", to, "crate", snap.Crate,
				"items", len(snap.Records), "nodes", len(snap.Graph.Nodes), "edges", len(snap.Graph.Edges))
			f.printTimings(cmd, res)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&to, "to", "sqlite", "neo4j or sqlite")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Neo4j URI or SQLite file (overrides config)")
	return cmd
}

func (a *app) openSink(ctx context.Context, to, dsn string) (graph.Sink, error) {
	switch to {
	case "neo4j":
		c := a.cfg.Graph
		if dsn != "" {
			c.URI = dsn
		}
		return neo4j.New(ctx, c.URI, c.Username, c.Password, c.Database)
	default:
		path := a.cfg.SQLite.Path
		if dsn != "" {
			path = dsn
		}
		return sqlite.Open(ctx, path)
	}
}

func exportSnapshot(res *analysis.Result) *graph.Snapshot {
	snap := &graph.Snapshot{
		Records:   res.Records,
		Graph:     depgraph.Analyze(res.Document, res.Table, res.Records),
		Aggregate: res.Aggregate,
	}
	if doc := res.Document; doc != nil {
		snap.CrateVersion = doc.CrateVersion
		snap.FormatVersion = doc.FormatVersion
		if root := doc.RootItem(); root != nil {
			snap.Crate = root.Name
		}
	}
	return snap
}
