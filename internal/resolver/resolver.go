// Package resolver turns unresolved references left behind by extraction
// into concrete edges, once the whole codebase has been parsed and every
// symbol name is known (spec §4.D Resolver).
//
// Matching is plain, language-agnostic Go rather than per-language scripts:
// the matching algorithm itself — name equality, then scope-ranked
// candidate selection, then an ambiguity policy — doesn't vary by language
// except for the "same language" ranking tier, so giving every language its
// own resolve script would just be ten copies of the same logic.
package resolver

import (
	"context"
	"fmt"

	"github.com/grahambrooks/codemap/internal/clog"
	"github.com/grahambrooks/codemap/internal/store"
)

// pageSize bounds how many unresolved references are loaded into memory at
// once (spec §4.D "processes unresolved references in batches").
const pageSize = 500

// Budget caps how much work a single Resolve call may do, so a caller (the
// `index` CLI command, the `serve` background reindex loop) can bound
// latency on very large repositories.
type Budget struct {
	MaxReferences int // 0 means unlimited
}

// Stats summarizes one Resolve run.
type Stats struct {
	Resolved  int
	Ambiguous int
	Unmatched int
}

// Resolve drains the unresolved_references table, converting each entry it
// can confidently match into an Edge. It is idempotent: running it twice in
// a row with no new extraction in between resolves nothing the second time,
// since the first run already deleted every reference it handled (spec
// invariant — resolution never double-applies).
func Resolve(ctx context.Context, s *store.Store, budget Budget) (Stats, error) {
	var stats Stats
	cursor := int64(0)

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if budget.MaxReferences > 0 && stats.Resolved+stats.Ambiguous+stats.Unmatched >= budget.MaxReferences {
			break
		}

		refs, err := s.UnresolvedPage(cursor, pageSize)
		if err != nil {
			return stats, fmt.Errorf("resolver: page unresolved references: %w", err)
		}
		if len(refs) == 0 {
			break
		}

		for _, ref := range refs {
			if budget.MaxReferences > 0 && stats.Resolved+stats.Ambiguous+stats.Unmatched >= budget.MaxReferences {
				break
			}
			cursor = ref.ID
			if err := resolveOne(s, ref, &stats); err != nil {
				return stats, err
			}
		}
	}

	clog.Infof("resolve: %d resolved, %d ambiguous, %d unmatched", stats.Resolved, stats.Ambiguous, stats.Unmatched)
	return stats, nil
}

func resolveOne(s *store.Store, ref *store.UnresolvedReference, stats *Stats) error {
	tx, err := s.DB().Begin()
	if err != nil {
		return fmt.Errorf("resolver: begin: %w", err)
	}
	defer tx.Rollback()

	source, err := s.NodeByID(ref.SourceNodeID)
	if err != nil {
		return fmt.Errorf("resolver: load source node %d: %w", ref.SourceNodeID, err)
	}
	if source == nil {
		// Source node vanished between extraction and resolution (file was
		// deleted and re-indexed in between); the reference is stale.
		if err := s.DeleteUnresolved(tx, ref.ID); err != nil {
			return err
		}
		return tx.Commit()
	}

	candidates, err := s.CandidateNodesByName(ref.ReferenceName)
	if err != nil {
		return fmt.Errorf("resolver: candidates for %q: %w", ref.ReferenceName, err)
	}
	candidates = filterByKind(candidates, ref.ReferenceKind)

	top := bestTier(candidates, source)
	if len(top) == 0 {
		stats.Unmatched++
		return tx.Commit() // leave unresolved: might resolve on a later pass
	}

	target, ok := pickWinner(top)
	if !ok {
		// Ambiguity policy: the best tier has multiple candidates and no
		// single one is public among otherwise private/unknown peers.
		// Leave the reference unresolved so a future pass (e.g. after a
		// rename removes the ambiguity) can still pick it up.
		stats.Ambiguous++
		return tx.Commit()
	}
	if err := s.InsertEdge(tx, &store.Edge{
		Kind:     edgeKindFor(ref.ReferenceKind),
		SourceID: source.ID,
		TargetID: target.ID,
		FileID:   ref.FileID,
		Line:     ref.Line,
	}); err != nil {
		return fmt.Errorf("resolver: insert edge: %w", err)
	}
	if err := s.DeleteUnresolved(tx, ref.ID); err != nil {
		return err
	}
	stats.Resolved++
	return tx.Commit()
}

// filterByKind narrows candidates to node kinds plausible for a reference
// kind — e.g. a "calls" reference can't resolve to a variable.
func filterByKind(candidates []*store.Node, refKind string) []*store.Node {
	allowed := kindsForReference(refKind)
	if allowed == nil {
		return candidates
	}
	out := candidates[:0:0]
	for _, c := range candidates {
		if allowed[c.Kind] {
			out = append(out, c)
		}
	}
	return out
}

// kindsForReference mirrors spec §4.D's candidate-set kind compatibility:
// calls -> function/method; extends/implements -> class/trait/interface;
// imports/exports -> any top-level (module or file) symbol.
func kindsForReference(refKind string) map[string]bool {
	switch refKind {
	case store.EdgeCalls:
		return map[string]bool{store.KindFunction: true, store.KindMethod: true}
	case store.EdgeExtends, store.EdgeImplements:
		return map[string]bool{store.KindClass: true, store.KindInterface: true, store.KindTrait: true}
	case store.EdgeImports, store.EdgeExports:
		return map[string]bool{store.KindModule: true, store.KindFile: true}
	default:
		return nil
	}
}

func edgeKindFor(refKind string) string {
	switch refKind {
	case store.EdgeCalls, store.EdgeExtends, store.EdgeImplements, store.EdgeImports, store.EdgeExports:
		return refKind
	default:
		return store.EdgeReferences
	}
}

// bestTier returns the candidates in the single best-scoring scope tier,
// per spec §4.D's scope ranking: same file as the reference site, then
// same language, then any candidate at all.
func bestTier(candidates []*store.Node, source *store.Node) []*store.Node {
	var best []*store.Node
	bestScore := 3
	for _, c := range candidates {
		t := tierFor(c, source)
		switch {
		case t < bestScore:
			bestScore = t
			best = []*store.Node{c}
		case t == bestScore:
			best = append(best, c)
		}
	}
	return best
}

func tierFor(candidate, source *store.Node) int {
	switch {
	case candidate.FileID == source.FileID:
		return 0
	case candidate.Language == source.Language:
		return 1
	default:
		return 2
	}
}

// pickWinner applies spec §4.D's ambiguity policy to a tied best tier: a
// single candidate wins outright, or — when several remain — a single
// public candidate wins if every other candidate in the tier is
// private/unknown. Otherwise the tier is genuinely ambiguous.
func pickWinner(tier []*store.Node) (*store.Node, bool) {
	if len(tier) == 1 {
		return tier[0], true
	}

	var publicCandidate *store.Node
	publicCount := 0
	for _, c := range tier {
		switch c.Visibility {
		case store.VisibilityPublic:
			publicCount++
			publicCandidate = c
		case store.VisibilityPrivate, store.VisibilityUnknown:
		default:
			return nil, false
		}
	}
	if publicCount == 1 {
		return publicCandidate, true
	}
	return nil, false
}
