// Package runtime embeds the Risor scripting language and exposes a set of
// tree-sitter and Store host functions to `.risor` extraction scripts,
// letting codemap express per-language symbol extraction as loaded scripts
// rather than hardcoded per-language Go branches (spec §4.B Extractor).
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/grahambrooks/codemap/internal/store"
)

// Runtime embeds a Risor VM and provides tree-sitter host functions and
// Store access to extraction scripts.
type Runtime struct {
	store      *store.Store
	scriptsDir string
	fsys       fs.FS
	sources    *sourceStore
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithFS configures the Runtime to load scripts from an fs.FS (an embedded
// filesystem in the shipped binary) instead of from disk, and wires the
// Risor importer to use FSImporter for import statement resolution.
func WithFS(fsys fs.FS) Option {
	return func(r *Runtime) { r.fsys = fsys }
}

// New creates a Runtime. store may be nil for tests that only exercise
// tree-sitter host functions.
func New(s *store.Store, scriptsDir string, opts ...Option) *Runtime {
	r := &Runtime{
		store:      s,
		scriptsDir: scriptsDir,
		sources:    newSourceStore(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and executes a Risor script against a fresh batch, with
// all standard globals plus the batch-scoped ones a caller supplies.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source directly, bypassing script loading —
// used by tests that exercise extraction logic without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(extraGlobals)

	opts := make([]risor.Option, 0, len(globals)+1)
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: names,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: names,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file's source, from the embedded fs.FS if one
// was configured via WithFS, otherwise relative to scriptsDir on disk.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// ExtractionScriptPath returns the path to a language's extraction script.
func ExtractionScriptPath(language string) string {
	return filepath.Join("extract", language+".risor")
}

func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"parse":      makeParseFn(r.sources),
		"parse_src":  makeParseSrcFn(r.sources),
		"node_text":  makeNodeTextFn(r.sources),
		"node_child": makeNodeChildFn(),
		"query":      makeQueryFn(r.sources),
		"log":        mustProxy(&logObject{}),
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
