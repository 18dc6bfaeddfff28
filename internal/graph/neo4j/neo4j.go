// Package neo4j stores API snapshots as a property graph.
package neo4j

import (
	"context"
	"fmt"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/efebarandurmaz/apistat/internal/classify"
	"github.com/efebarandurmaz/apistat/internal/depgraph"
	"github.com/efebarandurmaz/apistat/internal/graph"
	"github.com/efebarandurmaz/apistat/internal/observability"
)

// batchSize bounds the rows sent in one UNWIND.
const batchSize = 500

// Repository implements graph.Repository using Neo4j.
type Repository struct {
	driver   neo4j.DriverWithContext
	database string
}

// New creates a Neo4j-backed repository and checks that the server answers.
func New(ctx context.Context, uri, username, password, database string) (*Repository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Repository{driver: driver, database: database}, nil
}

func (r *Repository) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: r.database, AccessMode: mode})
}

// Statement is one parameterized Cypher query.
type Statement struct {
	Query  string
	Params map[string]any
}

var relTypes = map[depgraph.EdgeKind]string{
	depgraph.EdgeContains:   "CONTAINS",
	depgraph.EdgeReExports:  "REEXPORTS",
	depgraph.EdgeImplements: "IMPLEMENTS",
	depgraph.EdgeDependsOn:  "DEPENDS_ON",
}

// Statements returns the writes that replace snap's crate in the store, in
// execution order.
func Statements(snap *graph.Snapshot) []Statement {
	crate := snap.Crate
	stmts := []Statement{
		{
			Query:  "MATCH (n {crate: $crate}) WHERE n:Item OR n:Node DETACH DELETE n",
			Params: map[string]any{"crate": crate},
		},
		{
			Query: "MERGE (c:Crate {name: $crate}) " +
				"SET c.version = $version, c.format_version = $format_version, c.items = $items",
			Params: map[string]any{
				"crate":          crate,
				"version":        snap.CrateVersion,
				"format_version": int64(snap.FormatVersion),
				"items":          int64(len(snap.Records)),
			},
		},
	}

	items := make([]any, 0, len(snap.Records))
	for _, rec := range snap.Records {
		items = append(items, graph.RecordProps(rec))
	}
	for _, batch := range batches(items) {
		stmts = append(stmts, Statement{
			Query: "UNWIND $items AS it " +
				"MERGE (i:Item {crate: $crate, id: it.id}) SET i += it " +
				"WITH i MATCH (c:Crate {name: $crate}) MERGE (c)-[:DECLARES]->(i)",
			Params: map[string]any{"crate": crate, "items": batch},
		})
	}

	if snap.Graph == nil {
		return stmts
	}
	nodes := make([]any, 0, len(snap.Graph.Nodes))
	for _, n := range snap.Graph.Nodes {
		nodes = append(nodes, map[string]any{
			"id": n.ID, "name": n.Name, "kind": string(n.Kind), "module": n.Module, "node_crate": n.Crate,
		})
	}
	for _, batch := range batches(nodes) {
		stmts = append(stmts, Statement{
			Query:  "UNWIND $nodes AS n MERGE (g:Node {crate: $crate, id: n.id}) SET g += n",
			Params: map[string]any{"crate": crate, "nodes": batch},
		})
	}

	byKind := make(map[depgraph.EdgeKind][]any)
	for _, e := range snap.Graph.Edges {
		byKind[e.Kind] = append(byKind[e.Kind], map[string]any{"from": e.From, "to": e.To, "label": e.Label})
	}
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		rel, ok := relTypes[depgraph.EdgeKind(k)]
		if !ok {
			continue
		}
		for _, batch := range batches(byKind[depgraph.EdgeKind(k)]) {
			stmts = append(stmts, Statement{
				Query: "UNWIND $edges AS e " +
					"MATCH (a:Node {crate: $crate, id: e.from}) " +
					"MATCH (b:Node {crate: $crate, id: e.to}) " +
					"MERGE (a)-[r:" + rel + "]->(b) SET r.label = e.label",
				Params: map[string]any{"crate": crate, "edges": batch},
			})
		}
	}
	return stmts
}

func batches(rows []any) [][]any {
	var out [][]any
	for start := 0; start < len(rows); start += batchSize {
		out = append(out, rows[start:min(start+batchSize, len(rows))])
	}
	return out
}

// Store replaces the crate's nodes in a single write transaction.
func (r *Repository) Store(ctx context.Context, snap *graph.Snapshot) error {
	ctx, span := observability.StartSinkSpan(ctx, "neo4j", len(snap.Records))
	defer span.End()

	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, st := range Statements(snap) {
			if _, err := tx.Run(ctx, st.Query, st.Params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("store crate %s: %w", snap.Crate, err)
	}
	return nil
}

func (r *Repository) LoadRecords(ctx context.Context, crate string) ([]classify.Record, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, "MATCH (i:Item {crate: $crate}) RETURN i", map[string]any{"crate": crate})
		if err != nil {
			return nil, err
		}
		var records []classify.Record
		for rows.Next(ctx) {
			raw, _ := rows.Record().Get("i")
			node, ok := raw.(neo4j.Node)
			if !ok {
				continue
			}
			records = append(records, graph.RecordFromProps(node.Props))
		}
		return records, rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("load crate %s: %w", crate, err)
	}
	records := result.([]classify.Record)
	sort.Slice(records, func(i, j int) bool { return records[i].ID.Less(records[j].ID) })
	return records, nil
}

func (r *Repository) QueryReExports(ctx context.Context, crate, path string) ([]string, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx,
			"MATCH (u:Node {crate: $crate})-[:REEXPORTS]->(t:Node {crate: $crate, name: $path}) "+
				"RETURN u.name AS name ORDER BY name",
			map[string]any{"crate": crate, "path": path})
		if err != nil {
			return nil, err
		}
		var names []string
		for rows.Next(ctx) {
			n, _ := rows.Record().Get("name")
			if s, ok := n.(string); ok {
				names = append(names, s)
			}
		}
		return names, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

var _ graph.Repository = (*Repository)(nil)
