package codemap

import (
	"context"
	"fmt"

	"github.com/grahambrooks/codemap/internal/store"
)

// graphData is a bulk-loaded adjacency map over a set of edge kinds,
// avoiding N+1 SQL during BFS traversal (spec §4.E; grounded on the
// teacher's buildCallGraph pattern of loading once and walking in memory).
type graphData struct {
	forward map[int64][]int64 // source -> targets
	reverse map[int64][]int64 // target -> sources
}

func (q *QueryEngine) buildGraph(kinds ...string) (*graphData, error) {
	edges, err := q.store.AllEdges(kinds...)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	g := &graphData{forward: make(map[int64][]int64), reverse: make(map[int64][]int64)}
	for _, e := range edges {
		g.forward[e.SourceID] = append(g.forward[e.SourceID], e.TargetID)
		g.reverse[e.TargetID] = append(g.reverse[e.TargetID], e.SourceID)
	}
	return g, nil
}

// Callers returns the deduplicated source nodes of incoming `calls` edges
// onto a symbol (spec §4.E callers).
func (q *QueryEngine) Callers(name string) ([]NodeResult, error) {
	n, err := q.resolveSymbol(name)
	if err != nil {
		return nil, fmt.Errorf("callers: %w", err)
	}
	if n == nil {
		return nil, nil
	}
	edges, err := q.store.Neighbours(n.ID, store.Incoming, store.EdgeCalls)
	if err != nil {
		return nil, fmt.Errorf("callers: %w", err)
	}
	return q.nodesFromEdges(edges, func(e *store.Edge) int64 { return e.SourceID })
}

// Callees returns the deduplicated target nodes of outgoing `calls` edges
// from a symbol (spec §4.E callees).
func (q *QueryEngine) Callees(name string) ([]NodeResult, error) {
	n, err := q.resolveSymbol(name)
	if err != nil {
		return nil, fmt.Errorf("callees: %w", err)
	}
	if n == nil {
		return nil, nil
	}
	edges, err := q.store.Neighbours(n.ID, store.Outgoing, store.EdgeCalls)
	if err != nil {
		return nil, fmt.Errorf("callees: %w", err)
	}
	return q.nodesFromEdges(edges, func(e *store.Edge) int64 { return e.TargetID })
}

// impactEdgeKinds are the edge kinds impact()/diff_impact() traverse
// backwards (spec §4.E impact).
var impactEdgeKinds = []string{store.EdgeCalls, store.EdgeReferences, store.EdgeExtends, store.EdgeImplements}

// Impact returns the breadth-first closure over incoming calls/references/
// extends/implements edges from a single origin, bounded at maxDepth, with
// each node at its minimum discovered depth (spec §4.E impact). maxDepth<=0
// uses DefaultImpactDepth.
func (q *QueryEngine) Impact(ctx context.Context, name string, maxDepth int) (*Impact, error) {
	n, err := q.resolveSymbol(name)
	if err != nil {
		return nil, fmt.Errorf("impact: %w", err)
	}
	if n == nil {
		return nil, nil
	}
	return q.impactFrom(ctx, []int64{n.ID}, maxDepth)
}

// DiffImpact unions impact() over every symbol node whose span overlaps
// [startLine, endLine] in path, a multi-origin impact closure (spec §4.E
// diff_impact).
func (q *QueryEngine) DiffImpact(ctx context.Context, path string, startLine, endLine int, maxDepth int) (*Impact, error) {
	f, err := q.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("diff_impact: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	nodes, err := q.store.NodesByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("diff_impact: %w", err)
	}

	var origins []int64
	for _, nd := range nodes {
		if nd.StartLine <= endLine && nd.EndLine >= startLine {
			origins = append(origins, nd.ID)
		}
	}
	if len(origins) == 0 {
		return &Impact{}, nil
	}
	return q.impactFrom(ctx, origins, maxDepth)
}

func (q *QueryEngine) impactFrom(ctx context.Context, origins []int64, maxDepth int) (*Impact, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultImpactDepth
	}

	g, err := q.buildGraph(impactEdgeKinds...)
	if err != nil {
		return nil, fmt.Errorf("impact: %w", err)
	}

	visited := make(map[int64]int, len(origins))
	type queued struct {
		id    int64
		depth int
	}
	queue := make([]queued, 0, len(origins))
	for _, id := range origins {
		visited[id] = 0
		queue = append(queue, queued{id: id, depth: 0})
	}

	visitCount := 0
	truncated := false

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]
		visitCount++
		if visitCount > DefaultNodeVisitCap {
			truncated = true
			break
		}
		if cur.depth >= maxDepth {
			continue
		}
		for _, predID := range g.reverse[cur.id] {
			newDepth := cur.depth + 1
			if existing, seen := visited[predID]; seen && existing <= newDepth {
				continue
			}
			visited[predID] = newDepth
			queue = append(queue, queued{id: predID, depth: newDepth})
		}
	}

	ids := make([]int64, 0, len(visited))
	for id := range visited {
		ids = append(ids, id)
	}
	nodes, err := q.store.NodesByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("impact: load nodes: %w", err)
	}
	filePaths, err := q.store.AllFilePaths()
	if err != nil {
		return nil, fmt.Errorf("impact: load file paths: %w", err)
	}

	result := &Impact{Truncated: truncated}
	for _, nd := range nodes {
		depth, ok := visited[nd.ID]
		if !ok {
			continue
		}
		result.Nodes = append(result.Nodes, DepthNode{
			Node:  NodeResult{Node: *nd, FilePath: filePaths[nd.FileID]},
			Depth: depth,
		})
	}
	return result, nil
}

// Path returns the shortest directed `calls`-only path from one symbol to
// another via BFS, bounded at maxDepth (spec §4.E path). maxDepth<=0 uses
// DefaultPathDepth. Found is false if no path exists within the bound.
func (q *QueryEngine) Path(ctx context.Context, fromName, toName string, maxDepth int) (*PathResult, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultPathDepth
	}
	from, err := q.resolveSymbol(fromName)
	if err != nil {
		return nil, fmt.Errorf("path: %w", err)
	}
	to, err := q.resolveSymbol(toName)
	if err != nil {
		return nil, fmt.Errorf("path: %w", err)
	}
	if from == nil || to == nil {
		return &PathResult{Found: false}, nil
	}
	if from.ID == to.ID {
		nr, err := q.annotateOne(from)
		if err != nil {
			return nil, err
		}
		return &PathResult{Nodes: []NodeResult{nr}, Found: true}, nil
	}

	g, err := q.buildGraph(store.EdgeCalls)
	if err != nil {
		return nil, fmt.Errorf("path: %w", err)
	}

	type bfsEntry struct {
		id   int64
		prev int64
		has  bool
	}
	visited := map[int64]bfsEntry{from.ID: {id: from.ID}}
	queue := []int64{from.ID}
	depth := map[int64]int{from.ID: 0}

	found := false
	visitCount := 0
	for len(queue) > 0 && !found {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]
		visitCount++
		if visitCount > DefaultNodeVisitCap {
			break
		}
		if depth[cur] >= maxDepth {
			continue
		}
		for _, next := range g.forward[cur] {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = bfsEntry{id: next, prev: cur, has: true}
			depth[next] = depth[cur] + 1
			if next == to.ID {
				found = true
				break
			}
			queue = append(queue, next)
		}
	}

	if !found {
		return &PathResult{Found: false}, nil
	}

	// Walk the prev chain back from to.ID to from.ID.
	var chain []int64
	for id := to.ID; ; {
		chain = append(chain, id)
		if id == from.ID {
			break
		}
		id = visited[id].prev
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	nodes, err := q.store.NodesByIDs(chain)
	if err != nil {
		return nil, fmt.Errorf("path: load nodes: %w", err)
	}
	byID := make(map[int64]*store.Node, len(nodes))
	for _, nd := range nodes {
		byID[nd.ID] = nd
	}
	filePaths, err := q.store.AllFilePaths()
	if err != nil {
		return nil, fmt.Errorf("path: load file paths: %w", err)
	}

	out := make([]NodeResult, 0, len(chain))
	for _, id := range chain {
		nd := byID[id]
		if nd == nil {
			continue
		}
		out = append(out, NodeResult{Node: *nd, FilePath: filePaths[nd.FileID]})
	}
	return &PathResult{Nodes: out, Found: true}, nil
}
