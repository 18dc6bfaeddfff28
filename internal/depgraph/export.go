package depgraph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Format names a graph export format.
type Format string

const (
	FormatDOT     Format = "dot"
	FormatMermaid Format = "mermaid"
	FormatJSON    Format = "json"
	FormatStats   Format = "stats"
)

// Export renders g in the requested format.
func Export(g *Graph, format Format) ([]byte, error) {
	switch format {
	case FormatDOT:
		return []byte(ExportDOT(g)), nil
	case FormatMermaid:
		return []byte(ExportMermaid(g)), nil
	case FormatJSON:
		return ExportJSON(g)
	case FormatStats:
		return []byte(FormatStatsText(g)), nil
	}
	return nil, fmt.Errorf("unknown graph format %q (supported: dot, mermaid, json, stats)", format)
}

// byModule groups nodes by owning module, modules in sorted order.
func byModule(g *Graph, skipModules bool) ([]string, map[string][]Node) {
	groups := make(map[string][]Node)
	for _, n := range g.Nodes {
		if skipModules && n.Kind == NodeModule {
			continue
		}
		groups[n.Module] = append(groups[n.Module], n)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, groups
}

// ExportDOT generates a Graphviz DOT representation of the graph.
func ExportDOT(g *Graph) string {
	var b strings.Builder
	b.WriteString("digraph api {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\" fontsize=10];\n\n")

	for _, n := range g.Nodes {
		if n.Kind == NodeModule {
			fmt.Fprintf(&b, "  %q [label=%q shape=%s style=filled fillcolor=%q];\n",
				n.ID, n.Name, nodeShape(n.Kind), nodeColor(n.Kind))
		}
	}

	modules, groups := byModule(g, true)
	for i, mod := range modules {
		fmt.Fprintf(&b, "  subgraph cluster_%d {\n", i)
		fmt.Fprintf(&b, "    label=%q;\n", mod)
		b.WriteString("    style=dashed;\n")
		b.WriteString("    color=\"#58a6ff\";\n")
		for _, n := range groups[mod] {
			fmt.Fprintf(&b, "    %q [label=%q shape=%s style=filled fillcolor=%q];\n",
				n.ID, shortName(n.Name), nodeShape(n.Kind), nodeColor(n.Kind))
		}
		b.WriteString("  }\n\n")
	}

	for _, e := range g.Edges {
		label := ""
		if e.Label != "" {
			label = fmt.Sprintf(" label=%q", e.Label)
		}
		fmt.Fprintf(&b, "  %q -> %q [style=%s color=%q%s];\n",
			e.From, e.To, edgeStyle(e.Kind), edgeColor(e.Kind), label)
	}

	b.WriteString("}\n")
	return b.String()
}

// ExportMermaid generates a Mermaid diagram of the graph.
func ExportMermaid(g *Graph) string {
	var b strings.Builder
	b.WriteString("graph LR\n")

	modules, groups := byModule(g, false)
	for _, mod := range modules {
		if mod == "" {
			for _, n := range groups[mod] {
				fmt.Fprintf(&b, "  %s%s\n", sanitizeMermaidID(n.ID), mermaidNodeShape(n))
			}
			continue
		}
		fmt.Fprintf(&b, "  subgraph %s[\"%s\"]\n", sanitizeMermaidID("m_"+mod), mermaidText(mod))
		for _, n := range groups[mod] {
			fmt.Fprintf(&b, "    %s%s\n", sanitizeMermaidID(n.ID), mermaidNodeShape(n))
		}
		b.WriteString("  end\n")
	}

	for _, e := range g.Edges {
		label := ""
		if e.Label != "" {
			label = "|" + mermaidText(e.Label) + "|"
		}
		fmt.Fprintf(&b, "  %s %s%s %s\n",
			sanitizeMermaidID(e.From), mermaidArrow(e.Kind), label, sanitizeMermaidID(e.To))
	}

	return b.String()
}

// ExportJSON serializes the graph to JSON.
func ExportJSON(g *Graph) ([]byte, error) {
	out, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// FormatStatsText returns a human-readable summary of graph statistics.
func FormatStatsText(g *Graph) string {
	var b strings.Builder
	b.WriteString("Module Graph Statistics\n")
	b.WriteString("=======================\n\n")
	fmt.Fprintf(&b, "Nodes:       %d total\n", g.Stats.TotalNodes)
	fmt.Fprintf(&b, "  Modules:   %d\n", g.Stats.ModuleCount)
	fmt.Fprintf(&b, "  Types:     %d\n", g.Stats.TypeCount)
	fmt.Fprintf(&b, "  Traits:    %d\n", g.Stats.TraitCount)
	fmt.Fprintf(&b, "  Functions: %d\n", g.Stats.FunctionCount)
	fmt.Fprintf(&b, "  Re-exports: %d\n", g.Stats.ReExportCount)
	fmt.Fprintf(&b, "  External:  %d\n", g.Stats.ExternalCount)
	fmt.Fprintf(&b, "Edges:       %d total\n", g.Stats.TotalEdges)
	fmt.Fprintf(&b, "Max Fan-Out: %d (%s)\n", g.Stats.MaxFanOut, g.Stats.HotspotNode)
	fmt.Fprintf(&b, "Max Fan-In:  %d\n", g.Stats.MaxFanIn)
	fmt.Fprintf(&b, "Components:  %d\n", g.Stats.ConnectedComponents)

	if len(g.Stats.CyclicDeps) > 0 {
		fmt.Fprintf(&b, "\nCyclic Dependencies: %d\n", len(g.Stats.CyclicDeps))
		for i, cycle := range g.Stats.CyclicDeps {
			fmt.Fprintf(&b, "  %d: %s\n", i+1, strings.Join(cycle, " -> "))
		}
	}

	if len(g.Stats.ModuleFanOut) > 0 {
		mods := make([]string, 0, len(g.Stats.ModuleFanOut))
		for m := range g.Stats.ModuleFanOut {
			mods = append(mods, m)
		}
		sort.Strings(mods)
		b.WriteString("\nModule Dependencies:\n")
		for _, m := range mods {
			fmt.Fprintf(&b, "  %s: %d outgoing\n", m, g.Stats.ModuleFanOut[m])
		}
	}

	return b.String()
}

// shortName drops the module prefix of a path.
func shortName(path string) string {
	if i := strings.LastIndex(path, "::"); i >= 0 {
		return path[i+2:]
	}
	return path
}

func sanitizeMermaidID(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, s)
}

func mermaidText(s string) string {
	return strings.ReplaceAll(s, "\"", "#quot;")
}

func nodeShape(kind NodeKind) string {
	switch kind {
	case NodeModule:
		return "box3d"
	case NodeType:
		return "box"
	case NodeTrait:
		return "ellipse"
	case NodeFunction:
		return "component"
	case NodeReExport:
		return "cds"
	case NodeExternal:
		return "note"
	default:
		return "box"
	}
}

func nodeColor(kind NodeKind) string {
	switch kind {
	case NodeModule:
		return "#1f6feb"
	case NodeType:
		return "#8957e5"
	case NodeTrait:
		return "#d29922"
	case NodeFunction:
		return "#238636"
	case NodeReExport:
		return "#8b949e"
	case NodeExternal:
		return "#6e7681"
	default:
		return "#30363d"
	}
}

func edgeStyle(kind EdgeKind) string {
	switch kind {
	case EdgeContains:
		return "dashed"
	case EdgeReExports:
		return "dotted"
	case EdgeImplements, EdgeDependsOn:
		return "bold"
	default:
		return "solid"
	}
}

func edgeColor(kind EdgeKind) string {
	switch kind {
	case EdgeContains:
		return "#8b949e"
	case EdgeReExports:
		return "#3fb950"
	case EdgeImplements:
		return "#d29922"
	case EdgeDependsOn:
		return "#f85149"
	default:
		return "#c9d1d9"
	}
}

func mermaidNodeShape(n Node) string {
	name := mermaidText(shortName(n.Name))
	switch n.Kind {
	case NodeModule:
		return fmt.Sprintf("[[\"%s\"]]", mermaidText(n.Name))
	case NodeTrait:
		return fmt.Sprintf("([\"%s\"])", name)
	case NodeReExport:
		return fmt.Sprintf(">\"%s\"]", name)
	case NodeExternal:
		return fmt.Sprintf("{{\"%s\"}}", mermaidText(n.Name))
	default:
		return fmt.Sprintf("[\"%s\"]", name)
	}
}

func mermaidArrow(kind EdgeKind) string {
	switch kind {
	case EdgeContains:
		return "-.->"
	case EdgeReExports:
		return "-->"
	case EdgeImplements:
		return "==>"
	case EdgeDependsOn:
		return "===>"
	default:
		return "-->"
	}
}
