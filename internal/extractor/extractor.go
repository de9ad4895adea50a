// Package extractor runs per-language `.risor` extraction scripts against
// parsed source files and turns their output into a committable Batch
// (spec §4.B Extractor).
package extractor

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/grahambrooks/codemap/internal/langregistry"
	"github.com/grahambrooks/codemap/internal/runtime"
	"github.com/grahambrooks/codemap/internal/store"
)

// Extractor runs extraction scripts. scriptsDir/scriptsFS select where
// `.risor` scripts are loaded from; a fresh Runtime is created per call so
// that the tree-sitter source-tracking maps in runtime.Runtime are never
// shared across goroutines (spec §5: each worker owns its own Runtime).
type Extractor struct {
	scriptsDir string
	scriptsFS  fs.FS
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithScriptsFS loads `.risor` scripts from an embedded filesystem instead
// of scriptsDir.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Extractor) { e.scriptsFS = fsys }
}

// New creates an Extractor that loads scripts from scriptsDir, unless
// overridden by WithScriptsFS.
func New(scriptsDir string, opts ...Option) *Extractor {
	e := &Extractor{scriptsDir: scriptsDir}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ContentHash returns the SHA-256 hex digest of file content, used to
// detect unchanged files across indexing passes (spec invariant 6).
func ContentHash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// Extract parses path's content and runs its language's extraction script,
// returning a Batch ready for Store.CommitBatch. A synthetic file node is
// added first, before the script runs, so a file whose script emits nothing
// (an empty file, or source with syntax errors the parser tolerates) still
// has one node to anchor edges and unused computations against. If the
// script returns an error, Extract returns that error and no Batch, so
// nothing is committed for the file.
func (e *Extractor) Extract(ctx context.Context, path string, content []byte) (*store.Batch, error) {
	lang, ok := langregistry.ForFile(path)
	if !ok {
		return nil, fmt.Errorf("extractor: unsupported file extension for %s", path)
	}

	batch := store.NewBatch(&store.File{
		Path:        path,
		Language:    lang,
		ContentHash: ContentHash(content),
	})

	lines := countLines(content)
	fileNodeID := batch.AddNode(&store.Node{
		Kind:       store.KindFile,
		Name:       filepath.Base(path),
		StartLine:  1,
		EndLine:    lines,
		Language:   lang,
		Visibility: store.VisibilityPublic,
	})

	rt := runtime.New(nil, e.scriptsDir, runtimeOpts(e.scriptsFS)...)
	scriptPath := runtime.ExtractionScriptPath(lang)

	extras := runtime.BatchGlobals(batch)
	extras["file_path"] = path
	extras["source"] = string(content)
	extras["language"] = lang
	extras["file_id"] = fileNodeID

	if err := rt.RunScript(ctx, scriptPath, extras); err != nil {
		return nil, fmt.Errorf("extractor: %s: %w", path, err)
	}
	return batch, nil
}

func runtimeOpts(fsys fs.FS) []runtime.Option {
	if fsys == nil {
		return nil
	}
	return []runtime.Option{runtime.WithFS(fsys)}
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := 1
	for _, b := range content {
		if b == '\n' {
			n++
		}
	}
	return n
}
