package codemap

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/grahambrooks/codemap/internal/store"
)

// unusedKinds are the symbol kinds unused() considers (spec §4.E unused).
var unusedKinds = []string{store.KindFunction, store.KindMethod, store.KindClass}

// unusedIncomingKinds are the edge kinds whose presence marks a symbol as
// used (spec §4.E unused).
var unusedIncomingKinds = []string{store.EdgeCalls, store.EdgeReferences, store.EdgeExtends, store.EdgeImplements}

// Unused returns non-public function, method, and class nodes with zero
// incoming calls/references/extends/implements edges (spec §4.E unused).
// Public symbols are excluded because external callers may exist outside
// the indexed tree.
func (q *QueryEngine) Unused() ([]NodeResult, error) {
	candidates, err := q.store.NodesByKinds(unusedKinds...)
	if err != nil {
		return nil, fmt.Errorf("unused: %w", err)
	}

	referenced, err := q.store.AllEdges(unusedIncomingKinds...)
	if err != nil {
		return nil, fmt.Errorf("unused: %w", err)
	}
	targeted := make(map[int64]bool, len(referenced))
	for _, e := range referenced {
		targeted[e.TargetID] = true
	}

	var dead []*store.Node
	for _, n := range candidates {
		if n.Visibility == store.VisibilityPublic {
			continue
		}
		if targeted[n.ID] {
			continue
		}
		dead = append(dead, n)
	}
	return q.annotate(dead)
}

// contextDamping and contextMaxIterations mirror the teacher-adjacent repomap
// ranking's power-iteration PageRank, scaled down: codemap's graph is
// file-to-file via shared symbol edges rather than a full web graph, so it
// converges in far fewer iterations than a general-purpose crawler rank
// would need.
const (
	contextDamping      = 0.85
	contextMaxIterations = 50
	contextTolerance     = 1e-6
	personalizeBoost     = 50.0
)

// Context ranks files by relevance to a free-text task description, for the
// `context` CLI command/tool (spec §6). It adapts a PageRank-over-files
// model: edges are weighted by the symbols two files share, biased by a
// personalization vector toward files whose paths textually contain the
// task's tokens, then flattened back to a ranked symbol list (each file's
// rank weighted by how well the symbol's name matches the tokens) so
// callers get concrete definitions rather than bare file paths. limit<=0
// defaults to 20.
func (q *QueryEngine) Context(task string, limit int) ([]NodeResult, error) {
	if limit <= 0 {
		limit = 20
	}

	nodes, err := q.store.NodesByKinds(store.KindFunction, store.KindMethod, store.KindClass, store.KindInterface, store.KindStruct, store.KindModule)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	filePaths, err := q.store.AllFilePaths()
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	edges, err := q.store.AllEdges(store.EdgeCalls, store.EdgeReferences, store.EdgeImports, store.EdgeExtends, store.EdgeImplements)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	nodeFile := make(map[int64]int64, len(nodes))
	for _, n := range nodes {
		nodeFile[n.ID] = n.FileID
	}

	fileIdx, files := indexFiles(filePaths)
	g := buildFileGraph(edges, nodeFile, fileIdx)

	tokens := taskTokens(task)
	personalization := personalize(files, filePaths, tokens)

	scores := pageRankFiles(g, len(files), personalization)

	type scored struct {
		node  *store.Node
		score float64
	}
	var ranked []scored
	for _, n := range nodes {
		idx, ok := fileIdx[n.FileID]
		if !ok {
			continue
		}
		s := scores[idx] * nameWeight(n.Name, tokens)
		if s <= 0 {
			continue
		}
		ranked = append(ranked, scored{node: n, score: s})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]NodeResult, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, NodeResult{Node: *r.node, FilePath: filePaths[r.node.FileID]})
	}
	return out, nil
}

func indexFiles(paths map[int64]string) (map[int64]int, []int64) {
	ids := make([]int64, 0, len(paths))
	for id := range paths {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	idx := make(map[int64]int, len(ids))
	for i, id := range ids {
		idx[id] = i
	}
	return idx, ids
}

type fileEdge struct {
	to     int
	weight float64
}

// buildFileGraph collapses node-level edges into file-level edges, weighted
// by how many distinct symbol edges cross each file pair (adapted from the
// teacher-adjacent repomap's BuildGraph, which does the same collapse from
// raw symbol references rather than a resolved edge table).
func buildFileGraph(edges []*store.Edge, nodeFile map[int64]int64, fileIdx map[int64]int) [][]fileEdge {
	weight := make(map[[2]int]float64)
	for _, e := range edges {
		fromFile, ok1 := nodeFile[e.SourceID]
		toFile, ok2 := nodeFile[e.TargetID]
		if !ok1 || !ok2 || fromFile == toFile {
			continue
		}
		fi, ok1 := fileIdx[fromFile]
		ti, ok2 := fileIdx[toFile]
		if !ok1 || !ok2 {
			continue
		}
		weight[[2]int{fi, ti}]++
	}

	adj := make([][]fileEdge, len(fileIdx))
	for key, w := range weight {
		adj[key[0]] = append(adj[key[0]], fileEdge{to: key[1], weight: w})
	}
	return adj
}

func taskTokens(task string) []string {
	fields := strings.FieldsFunc(strings.ToLower(task), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '_')
	})
	var out []string
	for _, f := range fields {
		if len(f) >= 3 {
			out = append(out, f)
		}
	}
	return out
}

// personalize biases the random walk toward files whose path textually
// matches the task tokens, the same role cfg.PersonalizedFiles plays in the
// teacher-adjacent repomap ranker — files the user is plausibly already
// touching get amplified rank.
func personalize(fileIDs []int64, paths map[int64]string, tokens []string) []float64 {
	n := len(fileIDs)
	p := make([]float64, n)
	total := 0.0
	for i, id := range fileIDs {
		p[i] = 1.0
		path := strings.ToLower(paths[id])
		for _, t := range tokens {
			if strings.Contains(path, t) {
				p[i] += personalizeBoost
			}
		}
		total += p[i]
	}
	if total == 0 {
		return p
	}
	for i := range p {
		p[i] /= total
	}
	return p
}

// pageRankFiles runs a personalized power-iteration PageRank over the
// file-level graph, identical in shape to the teacher-adjacent repomap's
// Rank, minus its dependency on a pre-extracted symbol-ref slice.
func pageRankFiles(adj [][]fileEdge, n int, personalization []float64) []float64 {
	if n == 0 {
		return nil
	}
	outWeight := make([]float64, n)
	for i, edges := range adj {
		for _, e := range edges {
			outWeight[i] += e.weight
		}
	}

	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / float64(n)
	}
	newRank := make([]float64, n)

	for iter := 0; iter < contextMaxIterations; iter++ {
		for i := range newRank {
			newRank[i] = (1 - contextDamping) * personalization[i]
		}
		for i, edges := range adj {
			if outWeight[i] == 0 {
				for j := range newRank {
					newRank[j] += contextDamping * rank[i] * personalization[j]
				}
				continue
			}
			for _, e := range edges {
				newRank[e.to] += contextDamping * rank[i] * (e.weight / outWeight[i])
			}
		}
		diff := 0.0
		for i := range rank {
			diff += math.Abs(newRank[i] - rank[i])
		}
		copy(rank, newRank)
		if diff < contextTolerance {
			break
		}
	}
	return rank
}

// nameWeight favours symbol names that textually match a task token, so
// Context surfaces specific definitions within a highly-ranked file rather
// than every symbol it contains equally.
func nameWeight(name string, tokens []string) float64 {
	if len(tokens) == 0 {
		return 1.0
	}
	lower := strings.ToLower(name)
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			return 2.0
		}
	}
	return 1.0
}
