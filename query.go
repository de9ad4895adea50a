package codemap

import (
	"fmt"

	"github.com/grahambrooks/codemap/internal/store"
)

// QueryEngine answers structural queries over an already-indexed Store
// (spec §4.E Graph Query Engine). It never mutates the store.
type QueryEngine struct {
	store *store.Store
}

// NewQueryEngine creates a QueryEngine from a Store. Used directly by the
// CLI and the tool server, which only need the read side.
func NewQueryEngine(s *store.Store) *QueryEngine {
	return &QueryEngine{store: s}
}

// FindByName looks up symbols by exact name, returned in (file_path,
// start_line) order (spec §4.E find_by_name). Every match is returned in
// one slice; the lookup is not paged.
func (q *QueryEngine) FindByName(name string, filter store.NodeFilter) ([]NodeResult, error) {
	nodes, err := q.store.QueryNodesByName(name, filter)
	if err != nil {
		return nil, fmt.Errorf("find_by_name: %w", err)
	}
	return q.annotate(nodes)
}

// Search performs a fuzzy substring match over symbol names, for the
// `search` CLI command/tool (spec §6). Exact-name matches sort first.
func (q *QueryEngine) Search(query string, limit int) ([]NodeResult, error) {
	if limit <= 0 {
		limit = 50
	}
	nodes, err := q.store.QueryNodesByNamePrefix(query, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return q.annotate(nodes)
}

// resolveSymbol looks up the first node matching name, in (file_path,
// start_line) order — the same tie-break find_by_name uses — since every
// query tool in spec §6 addresses a symbol by bare name, and a name may be
// overloaded across files (spec's "ambiguity" here is a presentation
// choice, not the Resolver's; a caller wanting a specific overload should
// use `file` + `node` instead). Returns (nil, nil) when nothing matches
// rather than an error (spec §7 QueryNotFound: "return empty result, not an error").
func (q *QueryEngine) resolveSymbol(name string) (*store.Node, error) {
	nodes, err := q.store.QueryNodesByName(name, store.NodeFilter{})
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

// Node returns full metadata for a symbol by name (spec §6 `node` tool).
func (q *QueryEngine) Node(name string) (*NodeResult, error) {
	n, err := q.resolveSymbol(name)
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	if n == nil {
		return nil, nil
	}
	out, err := q.annotateOne(n)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Definition returns the source span of a symbol (spec §6 `definition`
// tool). contextLines pads the returned span on each side for callers that
// want surrounding code; 0 returns the exact span.
func (q *QueryEngine) Definition(name string, contextLines int) (*NodeResult, error) {
	n, err := q.resolveSymbol(name)
	if err != nil {
		return nil, fmt.Errorf("definition: %w", err)
	}
	if n == nil {
		return nil, nil
	}
	out, err := q.annotateOne(n)
	if err != nil {
		return nil, err
	}
	if contextLines > 0 {
		out.StartLine -= contextLines
		if out.StartLine < 1 {
			out.StartLine = 1
		}
		out.EndLine += contextLines
	}
	return &out, nil
}

// File returns every symbol defined in a file (spec §6 `file` tool).
func (q *QueryEngine) File(path string) ([]NodeResult, error) {
	f, err := q.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	nodes, err := q.store.NodesByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("file: %w", err)
	}
	out := make([]NodeResult, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, NodeResult{Node: *n, FilePath: f.Path})
	}
	return out, nil
}

// References returns every incoming edge of any kind onto a symbol (spec
// §6 `references` tool — broader than callers(), which is calls-only).
func (q *QueryEngine) References(name string) ([]NodeResult, error) {
	n, err := q.resolveSymbol(name)
	if err != nil {
		return nil, fmt.Errorf("references: %w", err)
	}
	if n == nil {
		return nil, nil
	}
	edges, err := q.store.Neighbours(n.ID, store.Incoming, "")
	if err != nil {
		return nil, fmt.Errorf("references: %w", err)
	}
	return q.nodesFromEdges(edges, func(e *store.Edge) int64 { return e.SourceID })
}

func (q *QueryEngine) nodesFromEdges(edges []*store.Edge, pick func(*store.Edge) int64) ([]NodeResult, error) {
	seen := make(map[int64]bool, len(edges))
	var out []NodeResult
	for _, e := range edges {
		id := pick(e)
		if seen[id] {
			continue
		}
		seen[id] = true
		n, err := q.store.NodeByID(id)
		if err != nil {
			return nil, err
		}
		if n == nil {
			continue
		}
		nr, err := q.annotateOne(n)
		if err != nil {
			return nil, err
		}
		out = append(out, nr)
	}
	return out, nil
}

func (q *QueryEngine) annotate(nodes []*store.Node) ([]NodeResult, error) {
	out := make([]NodeResult, 0, len(nodes))
	for _, n := range nodes {
		nr, err := q.annotateOne(n)
		if err != nil {
			return nil, err
		}
		out = append(out, nr)
	}
	return out, nil
}

func (q *QueryEngine) annotateOne(n *store.Node) (NodeResult, error) {
	f, err := q.fileByID(n.FileID)
	if err != nil {
		return NodeResult{}, err
	}
	path := ""
	if f != nil {
		path = f.Path
	}
	return NodeResult{Node: *n, FilePath: path}, nil
}

// fileByID is a tiny lookup used by single-node queries; the Graph Query
// Engine's bulk traversals (query_graph.go) load the whole file-id->path
// map once instead of calling this per node.
func (q *QueryEngine) fileByID(id int64) (*store.File, error) {
	return q.store.FileByID(id)
}
