package codemap

import (
	"fmt"

	"github.com/grahambrooks/codemap/internal/store"
)

// hierarchyEdgeKinds is exactly {extends, implements} per spec §4.E
// hierarchy — never per-language inheritance/interface tables, one
// generic pair of edge kinds covers every supported language uniformly.
var hierarchyEdgeKinds = []string{store.EdgeExtends, store.EdgeImplements}

// Hierarchy returns the union of extends/implements closures in both
// directions from a symbol, each annotated with its direction relative to
// the queried node (spec §4.E hierarchy). Ancestors are reached by
// following extends/implements edges outward (this node extends/implements
// X); descendants by following them inward (Y extends/implements this
// node).
func (q *QueryEngine) Hierarchy(name string) ([]HierarchyNode, error) {
	n, err := q.resolveSymbol(name)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: %w", err)
	}
	if n == nil {
		return nil, nil
	}

	g, err := q.buildGraph(hierarchyEdgeKinds...)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: %w", err)
	}
	kindByEdge, err := q.edgeKindIndex(hierarchyEdgeKinds...)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: %w", err)
	}

	ancestorIDs := closure(g.forward, n.ID)
	descendantIDs := closure(g.reverse, n.ID)

	filePaths, err := q.store.AllFilePaths()
	if err != nil {
		return nil, fmt.Errorf("hierarchy: %w", err)
	}

	var out []HierarchyNode
	for _, id := range ancestorIDs {
		nd, err := q.store.NodeByID(id)
		if err != nil || nd == nil {
			continue
		}
		out = append(out, HierarchyNode{
			Node:      NodeResult{Node: *nd, FilePath: filePaths[nd.FileID]},
			Direction: DirectionAncestor,
			EdgeKind:  kindByEdge[edgeKey{n.ID, id}],
		})
	}
	for _, id := range descendantIDs {
		nd, err := q.store.NodeByID(id)
		if err != nil || nd == nil {
			continue
		}
		out = append(out, HierarchyNode{
			Node:      NodeResult{Node: *nd, FilePath: filePaths[nd.FileID]},
			Direction: DirectionDescendant,
			EdgeKind:  kindByEdge[edgeKey{id, n.ID}],
		})
	}
	return out, nil
}

// Implementations returns reverse `implements` edges onto a symbol — the
// types that implement it (spec §4.E implementations).
func (q *QueryEngine) Implementations(name string) ([]NodeResult, error) {
	n, err := q.resolveSymbol(name)
	if err != nil {
		return nil, fmt.Errorf("implementations: %w", err)
	}
	if n == nil {
		return nil, nil
	}
	edges, err := q.store.Neighbours(n.ID, store.Incoming, store.EdgeImplements)
	if err != nil {
		return nil, fmt.Errorf("implementations: %w", err)
	}
	return q.nodesFromEdges(edges, func(e *store.Edge) int64 { return e.SourceID })
}

// closure does an unbounded BFS over adj starting at root, excluding root
// itself, capped by DefaultNodeVisitCap. Hierarchy depths are in practice
// shallow (extends/implements chains, not recursive call graphs), so no
// depth parameter is exposed to callers.
func closure(adj map[int64][]int64, root int64) []int64 {
	visited := map[int64]bool{root: true}
	queue := []int64{root}
	var out []int64
	visits := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		visits++
		if visits > DefaultNodeVisitCap {
			break
		}
		for _, next := range adj[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	return out
}

type edgeKey struct{ source, target int64 }

// edgeKindIndex maps (source_id, target_id) -> kind for a set of edge
// kinds, so Hierarchy can report which of extends/implements connected
// each pair without a second round of per-edge queries.
func (q *QueryEngine) edgeKindIndex(kinds ...string) (map[edgeKey]string, error) {
	edges, err := q.store.AllEdges(kinds...)
	if err != nil {
		return nil, err
	}
	idx := make(map[edgeKey]string, len(edges))
	for _, e := range edges {
		idx[edgeKey{e.SourceID, e.TargetID}] = e.Kind
	}
	return idx, nil
}
