// Package depgraph builds the module graph of an API index: which module
// contains which item, what each re-export points at, which types implement
// which traits, and the module dependencies those re-exports imply.
package depgraph

import (
	"sort"
	"strings"

	"github.com/efebarandurmaz/apistat/internal/classify"
	"github.com/efebarandurmaz/apistat/internal/index"
	"github.com/efebarandurmaz/apistat/internal/resolve"
)

// Analyze builds the graph from classified records. Only modules and items
// listed directly in a module become nodes, plus whatever a re-export or a
// trait impl points at.
func Analyze(doc *index.Document, table *resolve.Table, records []classify.Record) *Graph {
	b := &builder{
		doc:     doc,
		table:   table,
		g:       &Graph{},
		nodes:   make(map[string]bool),
		edges:   make(map[Edge]bool),
		records: make(map[index.ID]*classify.Record, len(records)),
	}
	for i := range records {
		b.records[records[i].ID] = &records[i]
	}

	// 1. Modules and their direct members
	for i := range records {
		rec := &records[i]
		if rec.Category != classify.CategoryModule && !b.inModule(rec) {
			continue
		}
		if isImpl(rec.Category) {
			continue
		}
		b.addRecord(rec)
		if b.inModule(rec) {
			b.addRecord(b.records[rec.Parent])
			b.addEdge(Edge{From: nodeID(rec.Parent), To: nodeID(rec.ID), Kind: EdgeContains})
		}
	}

	// 2. Re-export targets and trait impls
	for i := range records {
		rec := &records[i]
		it, ok := doc.Item(rec.ID)
		if !ok {
			continue
		}
		switch {
		case it.Kind.Is(index.TagUse) && it.Target != nil && b.nodes[nodeID(rec.ID)]:
			to := b.target(*it.Target)
			b.addEdge(Edge{From: nodeID(rec.ID), To: to, Kind: EdgeReExports, Label: it.Name})
			b.addModuleDependency(rec, *it.Target)
		case rec.Category == classify.CategoryTraitImpl && it.Trait != nil && it.Parent != "":
			parent, ok := b.records[it.Parent]
			if !ok {
				continue
			}
			b.addRecord(parent)
			b.addEdge(Edge{From: nodeID(parent.ID), To: b.target(it.Trait.ID), Kind: EdgeImplements})
		}
	}

	b.g.computeStats()
	return b.g
}

type builder struct {
	doc     *index.Document
	table   *resolve.Table
	g       *Graph
	nodes   map[string]bool
	edges   map[Edge]bool
	records map[index.ID]*classify.Record
	// moduleByPath maps a module path to its node id.
	moduleByPath map[string]string
}

func (b *builder) inModule(rec *classify.Record) bool {
	parent, ok := b.records[rec.Parent]
	return ok && parent.Category == classify.CategoryModule
}

func (b *builder) addRecord(rec *classify.Record) {
	id := nodeID(rec.ID)
	if b.nodes[id] {
		return
	}
	name, module := rec.Path, rec.Module
	if name == "" {
		name = rec.Name
	}
	// A re-export carries its target's path; place it where it is declared.
	if rec.Category == classify.CategoryImport {
		if parent, ok := b.records[rec.Parent]; ok && parent.Path != "" {
			name = parent.Path + resolve.Separator + rec.Name
			module = parent.Path
		}
	}
	n := Node{
		ID:     id,
		Name:   name,
		Kind:   kindOf(rec.Category),
		Module: module,
		Crate:  rec.Crate,
		Metadata: map[string]string{
			"category":   string(rec.Category),
			"visibility": string(rec.Visibility),
			"stability":  string(rec.Stability),
		},
	}
	b.g.Nodes = append(b.g.Nodes, n)
	b.nodes[id] = true
	if n.Kind == NodeModule && rec.Path != "" {
		if b.moduleByPath == nil {
			b.moduleByPath = make(map[string]string)
		}
		b.moduleByPath[rec.Path] = id
	}
}

// target returns the node for a referenced id, adding it when needed.
func (b *builder) target(id index.ID) string {
	if rec, ok := b.records[id]; ok {
		b.addRecord(rec)
		return nodeID(id)
	}
	ext := "ext:" + string(id)
	if b.nodes[ext] {
		return ext
	}
	name := string(id)
	module := ""
	crate := ""
	if res, ok := b.table.Lookup(id); ok && res.Resolved() {
		name = res.Path
		module = res.Module
		crate = res.Crate
	} else if sum, ok := b.doc.Paths[id]; ok && len(sum.Path) > 0 {
		name = strings.Join(sum.Path, resolve.Separator)
		module = strings.Join(sum.Path[:len(sum.Path)-1], resolve.Separator)
		crate = b.doc.CrateName(sum.CrateID)
	}
	b.g.Nodes = append(b.g.Nodes, Node{ID: ext, Name: name, Kind: NodeExternal, Module: module, Crate: crate})
	b.nodes[ext] = true
	return ext
}

// addModuleDependency links the module declaring use to the module that
// defines its target, when both are local and distinct.
func (b *builder) addModuleDependency(use *classify.Record, target index.ID) {
	parent, ok := b.records[use.Parent]
	if !ok || parent.Category != classify.CategoryModule {
		return
	}
	res, ok := b.table.Lookup(target)
	if !ok || !res.Resolved() || res.Module == "" || res.Module == parent.Path {
		return
	}
	to, ok := b.moduleByPath[res.Module]
	if !ok {
		return
	}
	b.addEdge(Edge{From: nodeID(parent.ID), To: to, Kind: EdgeDependsOn})
}

func (b *builder) addEdge(e Edge) {
	key := Edge{From: e.From, To: e.To, Kind: e.Kind}
	if b.edges[key] {
		return
	}
	b.edges[key] = true
	b.g.Edges = append(b.g.Edges, e)
}

func nodeID(id index.ID) string { return "item:" + string(id) }

func isImpl(c classify.Category) bool {
	return c == classify.CategoryTraitImpl || c == classify.CategoryInherentImpl
}

func kindOf(c classify.Category) NodeKind {
	switch c {
	case classify.CategoryModule:
		return NodeModule
	case classify.CategoryStruct, classify.CategoryEnum, classify.CategoryUnion,
		classify.CategoryTypeAlias, classify.CategoryPrimitive, classify.CategoryForeignType:
		return NodeType
	case classify.CategoryTrait, classify.CategoryTraitAlias:
		return NodeTrait
	case classify.CategoryFunction, classify.CategoryMacro:
		return NodeFunction
	case classify.CategoryImport:
		return NodeReExport
	}
	return NodeOther
}

// computeStats computes graph metrics
func (g *Graph) computeStats() {
	g.Stats.TotalNodes = len(g.Nodes)
	g.Stats.TotalEdges = len(g.Edges)

	fanOut := make(map[string]int)
	fanIn := make(map[string]int)
	g.Stats.ModuleFanOut = make(map[string]int)
	names := make(map[string]string, len(g.Nodes))

	for _, n := range g.Nodes {
		names[n.ID] = n.Name
		switch n.Kind {
		case NodeModule:
			g.Stats.ModuleCount++
		case NodeType:
			g.Stats.TypeCount++
		case NodeTrait:
			g.Stats.TraitCount++
		case NodeFunction:
			g.Stats.FunctionCount++
		case NodeReExport:
			g.Stats.ReExportCount++
		case NodeExternal:
			g.Stats.ExternalCount++
		}
	}

	for _, e := range g.Edges {
		fanOut[e.From]++
		fanIn[e.To]++
		if e.Kind == EdgeDependsOn {
			g.Stats.ModuleFanOut[names[e.From]]++
		}
	}

	// Ties go to the first node in graph order.
	for _, n := range g.Nodes {
		if c := fanOut[n.ID]; c > g.Stats.MaxFanOut {
			g.Stats.MaxFanOut = c
			g.Stats.HotspotNode = n.Name
		}
		if c := fanIn[n.ID]; c > g.Stats.MaxFanIn {
			g.Stats.MaxFanIn = c
		}
	}

	g.Stats.ConnectedComponents = g.countComponents()
	g.Stats.CyclicDeps = g.detectCycles(names)
}

// countComponents counts weakly connected components via union-find
func (g *Graph) countComponents() int {
	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		if parent[x] == "" {
			parent[x] = x
		}
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		fa, fb := find(a), find(b)
		if fa != fb {
			parent[fa] = fb
		}
	}

	for _, n := range g.Nodes {
		find(n.ID)
	}
	for _, e := range g.Edges {
		union(e.From, e.To)
	}

	roots := make(map[string]bool)
	for _, n := range g.Nodes {
		roots[find(n.ID)] = true
	}
	return len(roots)
}

// detectCycles finds cycles in the depends_on edges, reported by module path
func (g *Graph) detectCycles(names map[string]string) [][]string {
	adj := make(map[string][]string)
	modules := make(map[string]bool)
	for _, e := range g.Edges {
		if e.Kind == EdgeDependsOn {
			adj[e.From] = append(adj[e.From], e.To)
			modules[e.From] = true
			modules[e.To] = true
		}
	}
	for _, next := range adj {
		sort.Strings(next)
	}

	var cycles [][]string
	visited := make(map[string]int) // 0=unvisited, 1=in-progress, 2=done
	path := make([]string, 0)

	var dfs func(node string)
	dfs = func(node string) {
		if visited[node] == 2 {
			return
		}
		if visited[node] == 1 {
			cycle := make([]string, 0)
			for i := len(path) - 1; i >= 0; i-- {
				cycle = append(cycle, names[path[i]])
				if path[i] == node {
					break
				}
			}
			for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
				cycle[i], cycle[j] = cycle[j], cycle[i]
			}
			cycles = append(cycles, cycle)
			return
		}
		visited[node] = 1
		path = append(path, node)
		for _, next := range adj[node] {
			dfs(next)
		}
		path = path[:len(path)-1]
		visited[node] = 2
	}

	sorted := make([]string, 0, len(modules))
	for m := range modules {
		sorted = append(sorted, m)
	}
	sort.Slice(sorted, func(i, j int) bool { return names[sorted[i]] < names[sorted[j]] })

	for _, m := range sorted {
		if visited[m] == 0 {
			dfs(m)
		}
	}
	return cycles
}
