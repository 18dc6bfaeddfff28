package depgraph

// Node represents a node in the module graph
type Node struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Kind     NodeKind          `json:"kind"`
	Module   string            `json:"module"` // owning module path
	Crate    string            `json:"crate"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NodeKind classifies graph nodes
type NodeKind string

const (
	NodeModule   NodeKind = "module"
	NodeType     NodeKind = "type"
	NodeTrait    NodeKind = "trait"
	NodeFunction NodeKind = "function"
	NodeReExport NodeKind = "reexport"
	NodeExternal NodeKind = "external"
	NodeOther    NodeKind = "other"
)

// Edge represents a directed edge between two nodes
type Edge struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Kind  EdgeKind `json:"kind"`
	Label string   `json:"label,omitempty"`
}

// EdgeKind classifies relationships
type EdgeKind string

const (
	EdgeContains   EdgeKind = "contains"   // module contains item
	EdgeReExports  EdgeKind = "reexports"  // use item points at its target
	EdgeImplements EdgeKind = "implements" // type implements trait
	EdgeDependsOn  EdgeKind = "depends_on" // module re-exports from module
)

// Graph is the module graph of one API index
type Graph struct {
	Nodes []Node     `json:"nodes"`
	Edges []Edge     `json:"edges"`
	Stats GraphStats `json:"stats"`
}

// GraphStats holds computed metrics about the graph
type GraphStats struct {
	TotalNodes          int            `json:"total_nodes"`
	TotalEdges          int            `json:"total_edges"`
	ModuleCount         int            `json:"module_count"`
	TypeCount           int            `json:"type_count"`
	TraitCount          int            `json:"trait_count"`
	FunctionCount       int            `json:"function_count"`
	ReExportCount       int            `json:"reexport_count"`
	ExternalCount       int            `json:"external_count"`
	MaxFanOut           int            `json:"max_fan_out"`
	MaxFanIn            int            `json:"max_fan_in"`
	HotspotNode         string         `json:"hotspot_node"` // node with most outgoing edges
	ConnectedComponents int            `json:"connected_components"`
	CyclicDeps          [][]string     `json:"cyclic_deps,omitempty"`
	ModuleFanOut        map[string]int `json:"module_fan_out"` // per-module depends_on count
}
