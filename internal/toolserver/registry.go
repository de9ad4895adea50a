package toolserver

import (
	"context"
	"encoding/json"

	"github.com/grahambrooks/codemap"
	"github.com/grahambrooks/codemap/internal/resolver"
	"github.com/grahambrooks/codemap/internal/store"
)

// Engine is the subset of codemap.Engine the tool surface needs. Declared
// as an interface so tests can fake it without a real SQLite file.
type Engine interface {
	Query() *codemap.QueryEngine
	Store() *store.Store
	IndexFiles(ctx context.Context, paths []string) (codemap.IndexResult, error)
}

func registerTools(e Engine) map[string]Handler {
	return map[string]Handler{
		"context":          contextTool(e),
		"search":           searchTool(e),
		"callers":          callersTool(e),
		"callees":          calleesTool(e),
		"impact":           impactTool(e),
		"diff-impact":      diffImpactTool(e),
		"path":             pathTool(e),
		"hierarchy":        hierarchyTool(e),
		"implementations":  implementationsTool(e),
		"unused":           unusedTool(e),
		"definition":       definitionTool(e),
		"file":             fileTool(e),
		"references":       referencesTool(e),
		"node":             nodeTool(e),
		"reindex":          reindexTool(e),
		"status":           statusTool(e),
	}
}

type symbolParams struct {
	Symbol string `json:"symbol"`
}

func requireSymbol(raw json.RawMessage) (string, error) {
	var p symbolParams
	if err := decodeParams(raw, &p); err != nil {
		return "", err
	}
	if p.Symbol == "" {
		return "", badRequestf("missing required parameter %q", "symbol")
	}
	return p.Symbol, nil
}

func contextTool(e Engine) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p struct {
			Task  string `json:"task"`
			Limit int    `json:"limit"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if p.Task == "" {
			return nil, badRequestf("missing required parameter %q", "task")
		}
		return e.Query().Context(p.Task, p.Limit)
	}
}

func searchTool(e Engine) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if p.Query == "" {
			return nil, badRequestf("missing required parameter %q", "query")
		}
		return e.Query().Search(p.Query, p.Limit)
	}
}

func callersTool(e Engine) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		symbol, err := requireSymbol(raw)
		if err != nil {
			return nil, err
		}
		return e.Query().Callers(symbol)
	}
}

func calleesTool(e Engine) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		symbol, err := requireSymbol(raw)
		if err != nil {
			return nil, err
		}
		return e.Query().Callees(symbol)
	}
}

func impactTool(e Engine) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p struct {
			Symbol   string `json:"symbol"`
			MaxDepth int    `json:"max_depth"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if p.Symbol == "" {
			return nil, badRequestf("missing required parameter %q", "symbol")
		}
		return e.Query().Impact(ctx, p.Symbol, p.MaxDepth)
	}
}

func diffImpactTool(e Engine) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p struct {
			FilePath  string `json:"file_path"`
			StartLine int    `json:"start_line"`
			EndLine   int    `json:"end_line"`
			MaxDepth  int    `json:"max_depth"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if p.FilePath == "" {
			return nil, badRequestf("missing required parameter %q", "file_path")
		}
		return e.Query().DiffImpact(ctx, p.FilePath, p.StartLine, p.EndLine, p.MaxDepth)
	}
}

func pathTool(e Engine) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p struct {
			From     string `json:"from"`
			To       string `json:"to"`
			MaxDepth int    `json:"max_depth"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if p.From == "" || p.To == "" {
			return nil, badRequestf("missing required parameters %q and %q", "from", "to")
		}
		return e.Query().Path(ctx, p.From, p.To, p.MaxDepth)
	}
}

func hierarchyTool(e Engine) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		symbol, err := requireSymbol(raw)
		if err != nil {
			return nil, err
		}
		return e.Query().Hierarchy(symbol)
	}
}

func implementationsTool(e Engine) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		symbol, err := requireSymbol(raw)
		if err != nil {
			return nil, err
		}
		return e.Query().Implementations(symbol)
	}
}

func unusedTool(e Engine) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		return e.Query().Unused()
	}
}

func definitionTool(e Engine) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p struct {
			Symbol       string `json:"symbol"`
			ContextLines int    `json:"context_lines"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if p.Symbol == "" {
			return nil, badRequestf("missing required parameter %q", "symbol")
		}
		return e.Query().Definition(p.Symbol, p.ContextLines)
	}
}

func fileTool(e Engine) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p struct {
			Path string `json:"path"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if p.Path == "" {
			return nil, badRequestf("missing required parameter %q", "path")
		}
		return e.Query().File(p.Path)
	}
}

func referencesTool(e Engine) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		symbol, err := requireSymbol(raw)
		if err != nil {
			return nil, err
		}
		return e.Query().References(symbol)
	}
}

func nodeTool(e Engine) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		symbol, err := requireSymbol(raw)
		if err != nil {
			return nil, err
		}
		return e.Query().Node(symbol)
	}
}

func reindexTool(e Engine) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p struct {
			Files []string `json:"files"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if len(p.Files) == 0 {
			stats, err := resolver.Resolve(ctx, e.Store(), resolver.Budget{})
			if err != nil {
				return nil, err
			}
			return stats, nil
		}
		return e.IndexFiles(ctx, p.Files)
	}
}

func statusTool(e Engine) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		return e.Store().Stats()
	}
}
