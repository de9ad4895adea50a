package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/grahambrooks/codemap/internal/store"
)

// BatchGlobals returns the insert_node/insert_edge/insert_unresolved host
// functions for a single file's extraction, scoped to batch so that the
// negative fake ids a script assigns via insert_node can be referenced by
// insert_edge/insert_unresolved in the same script run, before any of them
// have a real row (spec §5 concurrency model — each worker builds its own
// Batch, so these globals are rebuilt per file rather than shared across
// the whole Runtime like the stateless tree-sitter globals are).
func BatchGlobals(batch *store.Batch) map[string]any {
	return map[string]any{
		"insert_node":       makeInsertNodeFn(batch),
		"insert_edge":       makeInsertEdgeFn(batch),
		"insert_unresolved": makeInsertUnresolvedFn(batch),
	}
}

// makeInsertNodeFn creates "insert_node(map) -> int", accepting a Risor map
// with keys kind, name, start_line, end_line, language, visibility,
// signature, docstring, parent_id (any of the latter four may be absent).
// Returns the fake id the script should use for parent_id/source_id/
// target_id on later insert_node/insert_edge/insert_unresolved calls that
// reference this node.
func makeInsertNodeFn(batch *store.Batch) *object.Builtin {
	return object.NewBuiltin("insert_node", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("insert_node", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("insert_node: %v", err)
		}

		n := &store.Node{
			Kind:       getString(m, "kind"),
			Name:       getString(m, "name"),
			StartLine:  getInt(m, "start_line"),
			EndLine:    getInt(m, "end_line"),
			Language:   getString(m, "language"),
			Visibility: getStringDefault(m, "visibility", store.VisibilityUnknown),
			Signature:  getString(m, "signature"),
			Docstring:  getString(m, "docstring"),
		}
		if v, ok := getOptionalInt64(m, "parent_id"); ok {
			n.ParentID = v
		}

		fakeID := batch.AddNode(n)
		return object.NewInt(fakeID)
	})
}

// makeInsertEdgeFn creates "insert_edge(map) -> nil", accepting a map with
// keys kind, source_id, target_id, and optionally line. source_id/target_id
// may be fake ids returned by insert_node earlier in this same script run.
func makeInsertEdgeFn(batch *store.Batch) *object.Builtin {
	return object.NewBuiltin("insert_edge", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("insert_edge", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("insert_edge: %v", err)
		}

		batch.AddEdge(&store.Edge{
			Kind:     getString(m, "kind"),
			SourceID: getInt64(m, "source_id"),
			TargetID: getInt64(m, "target_id"),
			Line:     getInt(m, "line"),
		})
		return object.Nil
	})
}

// makeInsertUnresolvedFn creates "insert_unresolved(map) -> nil", accepting
// a map with keys source_node_id, reference_name, reference_kind, and
// optionally line.
func makeInsertUnresolvedFn(batch *store.Batch) *object.Builtin {
	return object.NewBuiltin("insert_unresolved", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("insert_unresolved", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("insert_unresolved: %v", err)
		}

		batch.AddUnresolved(&store.UnresolvedReference{
			SourceNodeID:  getInt64(m, "source_node_id"),
			ReferenceName: getString(m, "reference_name"),
			ReferenceKind: getString(m, "reference_kind"),
			Line:          getInt(m, "line"),
		})
		return object.Nil
	})
}

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getStringDefault(m map[string]object.Object, key, def string) string {
	v := getString(m, key)
	if v == "" {
		return def
	}
	return v
}

func getInt(m map[string]object.Object, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	if i, ok := v.(*object.Int); ok {
		return int(i.Value())
	}
	if f, ok := v.(*object.Float); ok {
		return int(f.Value())
	}
	return 0
}

func getInt64(m map[string]object.Object, key string) int64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	if i, ok := v.(*object.Int); ok {
		return i.Value()
	}
	if f, ok := v.(*object.Float); ok {
		return int64(f.Value())
	}
	return 0
}

func getOptionalInt64(m map[string]object.Object, key string) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	if v == nil || v.Type() == "nil" {
		return 0, false
	}
	if _, ok := v.(*object.NilType); ok {
		return 0, false
	}
	if i, ok := v.(*object.Int); ok {
		return i.Value(), true
	}
	if f, ok := v.(*object.Float); ok {
		return int64(f.Value()), true
	}
	return 0, false
}
