package codemap

import "github.com/grahambrooks/codemap/internal/store"

// DefaultNodeVisitCap bounds how many nodes a single traversal may visit
// before giving up. It is a fixed constant, not a per-call option. Impact
// and DiffImpact report Truncated=true when it trips; Path and Hierarchy
// stop without a flag.
const DefaultNodeVisitCap = 10000

// DefaultImpactDepth is impact()'s default max_depth.
const DefaultImpactDepth = 3

// DefaultPathDepth is path()'s default max_depth.
const DefaultPathDepth = 6

// NodeResult is a symbol node annotated with its owning file's path, since
// the Node record itself only carries a file id.
type NodeResult struct {
	store.Node
	FilePath string
}

// DepthNode pairs a NodeResult with its BFS distance from a traversal's
// origin (spec §4.E impact/diff_impact: "minimum discovered depth").
type DepthNode struct {
	Node  NodeResult
	Depth int
}

// Direction labels which way a hierarchy edge points relative to the
// queried node (spec §4.E hierarchy: "annotated with direction").
type Direction string

const (
	DirectionAncestor   Direction = "ancestor"
	DirectionDescendant Direction = "descendant"
)

// HierarchyNode is one member of a hierarchy() result.
type HierarchyNode struct {
	Node      NodeResult
	Direction Direction
	EdgeKind  string // "extends" or "implements" for a direct edge to the queried node; "" when reached only transitively
}

// Impact is the result of impact()/diff_impact(): a depth-bounded reverse
// closure over calls/references/extends/implements edges.
type Impact struct {
	Nodes     []DepthNode
	Truncated bool
}

// PathResult is the result of path(): the shortest calls-only path between
// two symbols, or no path found within the depth bound.
type PathResult struct {
	Nodes []NodeResult
	Found bool
}
