package codemap

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/grahambrooks/codemap/internal/extractor"
	"github.com/grahambrooks/codemap/internal/resolver"
	"github.com/grahambrooks/codemap/internal/store"
	"github.com/grahambrooks/codemap/internal/walker"
)

// DefaultBusyTimeout bounds how long a writer waits for the SQLite lock
// before StoreBusy surfaces to the caller (spec §7).
const DefaultBusyTimeout = 5 * time.Second

// Engine orchestrates the two-phase pipeline end to end: directory walk,
// parallel extraction, and a final batch resolve (spec §4, §5). It owns the
// Store's lifetime.
type Engine struct {
	store     *store.Store
	extractor *extractor.Extractor
	languages []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanguages restricts indexing to the given languages. Unset means all
// languages langregistry knows about.
func WithLanguages(languages ...string) Option {
	return func(e *Engine) { e.languages = languages }
}

// WithScriptsFS loads extraction scripts from an embedded filesystem rather
// than scriptsDir on disk (spec §6, mirroring the teacher's go:embed-backed
// script loading).
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.extractor = extractor.New("", extractor.WithScriptsFS(fsys))
	}
}

// Open opens or creates the SQLite database at dbPath and wires an Engine
// that loads extraction scripts from scriptsDir.
func Open(dbPath, scriptsDir string, opts ...Option) (*Engine, error) {
	s, err := store.Open(dbPath, DefaultBusyTimeout)
	if err != nil {
		return nil, fmt.Errorf("codemap: open store: %w", err)
	}
	e := &Engine{store: s, extractor: extractor.New(scriptsDir)}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store, for callers (the CLI's `status`
// command, the tool server) that need direct read access beyond the Graph
// Query Engine's surface.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Query returns a QueryEngine bound to this Engine's Store.
func (e *Engine) Query() *QueryEngine {
	return NewQueryEngine(e.store)
}

// IndexResult summarizes one IndexDirectory/IndexFiles call (spec §6
// `status`/`index` reporting).
type IndexResult struct {
	extractor.Result
	Pruned    int
	Resolved  int
	Ambiguous int
	Unmatched int
}

// indexResultJSON mirrors IndexResult for encoding: extractor.Result
// defines its own MarshalJSON (to render Errors as strings), which would
// otherwise be promoted onto IndexResult and silently drop every field
// declared here.
type indexResultJSON struct {
	Inserted  int
	Updated   int
	Unchanged int
	Skipped   int
	Errors    []string
	Pruned    int
	Resolved  int
	Ambiguous int
	Unmatched int
}

func (r IndexResult) MarshalJSON() ([]byte, error) {
	out := indexResultJSON{
		Inserted:  r.Inserted,
		Updated:   r.Updated,
		Unchanged: r.Unchanged,
		Skipped:   r.Skipped,
		Pruned:    r.Pruned,
		Resolved:  r.Resolved,
		Ambiguous: r.Ambiguous,
		Unmatched: r.Unmatched,
	}
	for _, e := range r.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	return json.Marshal(out)
}

// IndexDirectory discovers every source file under root (spec §6 directory
// walk: git ls-files, falling back to a plain filesystem walk) and indexes
// it, pruning store records for files that disappeared from disk, then
// resolving every pending reference in one batch (spec §4.D: resolution
// "runs once at the end of an indexing pass", never per file).
func (e *Engine) IndexDirectory(ctx context.Context, root string) (IndexResult, error) {
	paths, err := walker.List(root)
	if err != nil {
		return IndexResult{}, fmt.Errorf("codemap: walk %s: %w", root, err)
	}
	return e.indexAndPrune(ctx, paths)
}

// IndexFiles indexes exactly the given paths (used by the tool server's
// `reindex` tool), without pruning — callers that want prune semantics
// should use IndexDirectory.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) (IndexResult, error) {
	pipeline := extractor.NewPipeline(e.store, e.extractor, e.languages)
	result, err := pipeline.Run(ctx, paths)
	if err != nil {
		return IndexResult{}, fmt.Errorf("codemap: index files: %w", err)
	}
	stats, err := e.Resolve(ctx)
	if err != nil {
		return IndexResult{Result: result}, err
	}
	return IndexResult{
		Result:    result,
		Resolved:  stats.Resolved,
		Ambiguous: stats.Ambiguous,
		Unmatched: stats.Unmatched,
	}, nil
}

func (e *Engine) indexAndPrune(ctx context.Context, paths []string) (IndexResult, error) {
	pipeline := extractor.NewPipeline(e.store, e.extractor, e.languages)
	result, err := pipeline.Run(ctx, paths)
	if err != nil {
		return IndexResult{}, fmt.Errorf("codemap: index directory: %w", err)
	}

	pruned, err := e.prune(pipeline, paths)
	if err != nil {
		return IndexResult{Result: result}, err
	}

	stats, err := e.Resolve(ctx)
	if err != nil {
		return IndexResult{Result: result, Pruned: pruned}, err
	}

	return IndexResult{
		Result:    result,
		Pruned:    pruned,
		Resolved:  stats.Resolved,
		Ambiguous: stats.Ambiguous,
		Unmatched: stats.Unmatched,
	}, nil
}

// prune removes store records for files that are no longer present under
// any of the languages indexed this run (spec's "eager, same-pass"
// deletion decision — a file deleted between two index runs is removed
// from the graph on the very next run that notices its absence, rather
// than on a deferred sweep).
func (e *Engine) prune(pipeline *extractor.Pipeline, stillPresentPaths []string) (int, error) {
	present := make(map[string]bool, len(stillPresentPaths))
	for _, p := range stillPresentPaths {
		present[p] = true
	}

	languages := e.languages
	if languages == nil {
		langs, err := e.store.DistinctLanguages()
		if err != nil {
			return 0, fmt.Errorf("codemap: prune: %w", err)
		}
		languages = langs
	}

	pruned := 0
	for _, lang := range languages {
		files, err := e.store.FilesByLanguage(lang)
		if err != nil {
			return pruned, fmt.Errorf("codemap: prune: %w", err)
		}
		var stale []string
		for _, f := range files {
			if !present[f.Path] {
				stale = append(stale, f.Path)
			}
		}
		if len(stale) == 0 {
			continue
		}
		if err := pipeline.PruneDeleted(lang, present); err != nil {
			return pruned, fmt.Errorf("codemap: prune: %w", err)
		}
		pruned += len(stale)
	}
	return pruned, nil
}

// Resolve runs the Resolver once over every currently pending unresolved
// reference (spec §4.D). Exposed directly so a caller that already holds an
// Engine open (the tool server's `reindex` tool, for instance) can trigger
// resolution without a full IndexDirectory pass.
func (e *Engine) Resolve(ctx context.Context) (resolver.Stats, error) {
	return resolver.Resolve(ctx, e.store, resolver.Budget{})
}

// Rebuild drops and recreates the schema in place, for StoreCorrupt
// recovery (spec §7): the caller is expected to follow Rebuild with a fresh
// IndexDirectory.
func (e *Engine) Rebuild() error {
	return e.store.Rebuild()
}

// statOrNil is a small os.Stat wrapper that returns nil instead of an
// error; IsDir is built on it.
func statOrNil(path string) os.FileInfo {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	return info
}

// IsDir reports whether path exists and is a directory. cmd/codemap does
// not call it; the `index` command runs its own os.Stat check.
func IsDir(path string) bool {
	info := statOrNil(path)
	return info != nil && info.IsDir()
}
