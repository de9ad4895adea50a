package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitBatch_ResolvesFakeIDsThroughout(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	b := NewBatch(&File{Path: "/main.go", Language: "go", ContentHash: "hash-1"})
	structID := b.AddNode(&Node{Kind: KindStruct, Name: "Server", StartLine: 1, EndLine: 20, Language: "go", Visibility: VisibilityPublic})
	methodID := b.AddNode(&Node{Kind: KindMethod, Name: "Serve", StartLine: 5, EndLine: 10, Language: "go", Visibility: VisibilityPublic, ParentID: structID})
	b.AddEdge(&Edge{Kind: EdgeContains, SourceID: structID, TargetID: methodID, Line: 5})
	b.AddUnresolved(&UnresolvedReference{SourceNodeID: methodID, ReferenceName: "log.Println", ReferenceKind: EdgeCalls, Line: 6})

	state, err := s.CommitBatch(b)
	require.NoError(t, err)
	assert.Equal(t, FileInserted, state)

	f, err := s.FileByPath("/main.go")
	require.NoError(t, err)
	require.NotNil(t, f)

	nodes, err := s.NodesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	var structNode, methodNode *Node
	for _, n := range nodes {
		switch n.Name {
		case "Server":
			structNode = n
		case "Serve":
			methodNode = n
		}
	}
	require.NotNil(t, structNode)
	require.NotNil(t, methodNode)
	assert.Positive(t, structNode.ID)
	assert.Equal(t, structNode.ID, methodNode.ParentID, "the batch's negative fake parent id must be remapped to the real row id")

	edges, err := s.Neighbours(structNode.ID, Outgoing, EdgeContains)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, methodNode.ID, edges[0].TargetID)

	page, err := s.UnresolvedPage(0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, methodNode.ID, page[0].SourceNodeID)
}

func TestCommitBatch_UnchangedFileDiscardsRows(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	first := NewBatch(&File{Path: "/main.go", Language: "go", ContentHash: "hash-1"})
	first.AddNode(&Node{Kind: KindFunction, Name: "Foo", StartLine: 1, EndLine: 2, Language: "go", Visibility: VisibilityPublic})
	_, err := s.CommitBatch(first)
	require.NoError(t, err)

	second := NewBatch(&File{Path: "/main.go", Language: "go", ContentHash: "hash-1"})
	second.AddNode(&Node{Kind: KindFunction, Name: "ShouldNotAppear", StartLine: 1, EndLine: 2, Language: "go", Visibility: VisibilityPublic})
	state, err := s.CommitBatch(second)
	require.NoError(t, err)
	assert.Equal(t, FileUnchanged, state)

	f, err := s.FileByPath("/main.go")
	require.NoError(t, err)
	nodes, err := s.NodesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Foo", nodes[0].Name, "a batch for an unchanged file must not overwrite existing rows")
}

func TestCommitBatch_ChangedContentReplacesNodes(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	first := NewBatch(&File{Path: "/main.go", Language: "go", ContentHash: "hash-1"})
	first.AddNode(&Node{Kind: KindFunction, Name: "Old", StartLine: 1, EndLine: 2, Language: "go", Visibility: VisibilityPublic})
	_, err := s.CommitBatch(first)
	require.NoError(t, err)

	second := NewBatch(&File{Path: "/main.go", Language: "go", ContentHash: "hash-2"})
	second.AddNode(&Node{Kind: KindFunction, Name: "New", StartLine: 1, EndLine: 2, Language: "go", Visibility: VisibilityPublic})
	state, err := s.CommitBatch(second)
	require.NoError(t, err)
	assert.Equal(t, FileReplacedStale, state)

	f, err := s.FileByPath("/main.go")
	require.NoError(t, err)
	nodes, err := s.NodesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "New", nodes[0].Name)
}

func TestCommitBatch_UnresolvedReferenceGetsThisFileID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	b := NewBatch(&File{Path: "/main.go", Language: "go", ContentHash: "hash-1"})
	fnID := b.AddNode(&Node{Kind: KindFunction, Name: "Foo", StartLine: 1, EndLine: 2, Language: "go", Visibility: VisibilityPublic})
	b.AddUnresolved(&UnresolvedReference{SourceNodeID: fnID, ReferenceName: "fmt", ReferenceKind: EdgeImports, Line: 1})
	_, err := s.CommitBatch(b)
	require.NoError(t, err)

	f, err := s.FileByPath("/main.go")
	require.NoError(t, err)

	page, err := s.UnresolvedPage(0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, f.ID, page[0].FileID)
}
