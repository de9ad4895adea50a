package runtime

import (
	"context"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/grahambrooks/codemap/internal/clog"
	"github.com/grahambrooks/codemap/internal/langregistry"
)

// sourceStore tracks source bytes and language per parsed tree. node_text
// and query need to recover the source/language a Node came from, but
// smacker/go-tree-sitter doesn't expose Node.Tree(), so mappings are keyed
// by root node pointer — stashed at parse time via tree.RootNode() and
// recovered at lookup time by walking Parent() up to the root.
type sourceStore struct {
	mu      sync.RWMutex
	sources map[uintptr][]byte
	langs   map[uintptr]*sitter.Language
}

func newSourceStore() *sourceStore {
	return &sourceStore{
		sources: make(map[uintptr][]byte),
		langs:   make(map[uintptr]*sitter.Language),
	}
}

func (s *sourceStore) store(tree *sitter.Tree, src []byte, lang *sitter.Language) {
	root := tree.RootNode()
	key := uintptr(unsafe.Pointer(root))
	s.mu.Lock()
	s.sources[key] = src
	s.langs[key] = lang
	s.mu.Unlock()
}

func rootOf(node *sitter.Node) *sitter.Node {
	for node.Parent() != nil {
		node = node.Parent()
	}
	return node
}

func (s *sourceStore) sourceForNode(node *sitter.Node) ([]byte, bool) {
	key := uintptr(unsafe.Pointer(rootOf(node)))
	s.mu.RLock()
	src, ok := s.sources[key]
	s.mu.RUnlock()
	return src, ok
}

func (s *sourceStore) languageForNode(node *sitter.Node) (*sitter.Language, bool) {
	key := uintptr(unsafe.Pointer(rootOf(node)))
	s.mu.RLock()
	lang, ok := s.langs[key]
	s.mu.RUnlock()
	return lang, ok
}

// makeParseFn creates "parse(path, language) -> Tree", reading the file
// from disk itself. The shipped extraction scripts use parse_src on the
// already-loaded source instead.
func makeParseFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parse", 2, len(args))
		}
		pathStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("parse: path must be a string, got %s", args[0].Type())
		}
		langStr, ok := args[1].(*object.String)
		if !ok {
			return object.Errorf("parse: language must be a string, got %s", args[1].Type())
		}
		src, err := os.ReadFile(pathStr.Value())
		if err != nil {
			return object.Errorf("parse: reading %s: %v", pathStr.Value(), err)
		}
		return parseSource(ctx, ss, src, langStr.Value())
	})
}

// makeParseSrcFn creates "parse_src(source, language) -> Tree" — the
// extraction pipeline's normal entry point, since the driving Go code
// already has the file bytes in hand and there's no reason to re-read
// the file from inside the script.
func makeParseSrcFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parse_src", 2, len(args))
		}
		srcStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("parse_src: source must be a string, got %s", args[0].Type())
		}
		langStr, ok := args[1].(*object.String)
		if !ok {
			return object.Errorf("parse_src: language must be a string, got %s", args[1].Type())
		}
		return parseSource(ctx, ss, []byte(srcStr.Value()), langStr.Value())
	})
}

func parseSource(ctx context.Context, ss *sourceStore, src []byte, langName string) object.Object {
	lang, found := langregistry.Grammar(langName)
	if !found {
		return object.Errorf("parse: unsupported language %q", langName)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return object.Errorf("parse: tree-sitter parse failed: %v", err)
	}
	ss.store(tree, src, lang)

	proxy, err := object.NewProxy(tree)
	if err != nil {
		return object.Errorf("parse: proxy error: %v", err)
	}
	return proxy
}

// makeNodeTextFn creates "node_text(node) -> string". Exists because
// Risor's proxy system has no way to convert a Risor string into the []byte
// node.Content([]byte) expects.
func makeNodeTextFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, err := nodeFromArg(args[0])
		if err != nil {
			return object.Errorf("node_text: %v", err)
		}
		src, found := ss.sourceForNode(node)
		if !found {
			return object.Errorf("node_text: no source found for node's tree")
		}
		return object.NewString(node.Content(src))
	})
}

// makeQueryFn creates "query(pattern, node) -> []map[string]Node", running
// a tree-sitter query rooted at node and returning one map per match with
// capture names as keys.
func makeQueryFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		patternStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("query: pattern must be a string, got %s", args[0].Type())
		}
		node, err := nodeFromArg(args[1])
		if err != nil {
			return object.Errorf("query: %v", err)
		}

		lang, found := ss.languageForNode(node)
		if !found {
			return object.Errorf("query: no language found for node's tree")
		}
		src, found := ss.sourceForNode(node)
		if !found {
			return object.Errorf("query: no source found for node's tree")
		}

		q, err := sitter.NewQuery([]byte(patternStr.Value()), lang)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, node)

		var results []object.Object
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, src)

			matchMap := make(map[string]object.Object)
			for _, capture := range match.Captures {
				name := q.CaptureNameForId(capture.Index)
				nodeP, err := object.NewProxy(capture.Node)
				if err != nil {
					return object.Errorf("query: proxy error for capture %q: %v", name, err)
				}
				matchMap[name] = nodeP
			}
			results = append(results, object.NewMap(matchMap))
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

// makeNodeChildFn creates "node_child(node, fieldName) -> Node or nil", a
// safe wrapper over ChildByFieldName that returns Risor nil rather than a
// proxied Go nil pointer when the field is absent.
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, err := nodeFromArg(args[0])
		if err != nil {
			return object.Errorf("node_child: %v", err)
		}
		fieldStr, ok := args[1].(*object.String)
		if !ok {
			return object.Errorf("node_child: field must be a string, got %s", args[1].Type())
		}

		child := node.ChildByFieldName(fieldStr.Value())
		if child == nil {
			return object.Nil
		}
		p, err := object.NewProxy(child)
		if err != nil {
			return object.Errorf("node_child: proxy error: %v", err)
		}
		return p
	})
}

func nodeFromArg(arg object.Object) (*sitter.Node, error) {
	proxy, ok := arg.(*object.Proxy)
	if !ok {
		return nil, fmt.Errorf("expected proxy (Node), got %s", arg.Type())
	}
	node, ok := proxy.Interface().(*sitter.Node)
	if !ok {
		return nil, fmt.Errorf("expected *sitter.Node, got %T", proxy.Interface())
	}
	return node, nil
}

// logObject backs the `log` global, giving scripts log.info/warn/error
// methods that route through clog so script output interleaves correctly
// with the rest of codemap's diagnostics.
type logObject struct{}

func (l *logObject) Info(msg string)  { clog.Infof("%s", msg) }
func (l *logObject) Warn(msg string)  { clog.Warnf("%s", msg) }
func (l *logObject) Error(msg string) { clog.Errorf("%s", msg) }
