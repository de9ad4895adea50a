package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertTestNode(t *testing.T, s *Store, f *File, name, kind string) *Node {
	t.Helper()
	tx, err := s.db.Begin()
	require.NoError(t, err)
	n := &Node{Kind: kind, Name: name, FileID: f.ID, StartLine: 1, EndLine: 2, Language: f.Language, Visibility: VisibilityPublic}
	_, err = s.InsertNode(tx, n)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return n
}

func TestInsertNode_AndNodeByID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")

	tx, err := s.db.Begin()
	require.NoError(t, err)
	n := &Node{
		Kind: KindFunction, Name: "Foo", FileID: f.ID, StartLine: 4, EndLine: 9,
		Language: "go", Visibility: VisibilityPublic, Signature: "func Foo()", Docstring: "Foo does a thing.",
	}
	id, err := s.InsertNode(tx, n)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.Positive(t, id)

	got, err := s.NodeByID(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Foo", got.Name)
	assert.Equal(t, KindFunction, got.Kind)
	assert.Equal(t, "func Foo()", got.Signature)
	assert.Equal(t, "Foo does a thing.", got.Docstring)
	assert.Equal(t, 4, got.StartLine)
}

func TestNodeByID_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	got, err := s.NodeByID(99999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsertNode_WithParent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")

	tx, err := s.db.Begin()
	require.NoError(t, err)
	parentID, err := s.InsertNode(tx, &Node{Kind: KindStruct, Name: "Server", FileID: f.ID, StartLine: 1, EndLine: 20, Language: "go", Visibility: VisibilityPublic})
	require.NoError(t, err)
	childID, err := s.InsertNode(tx, &Node{Kind: KindMethod, Name: "Serve", FileID: f.ID, StartLine: 5, EndLine: 10, Language: "go", Visibility: VisibilityPublic, ParentID: parentID})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	child, err := s.NodeByID(childID)
	require.NoError(t, err)
	assert.Equal(t, parentID, child.ParentID)
}

func TestNodesByFile_OrderedByStartLine(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")

	tx, err := s.db.Begin()
	require.NoError(t, err)
	_, err = s.InsertNode(tx, &Node{Kind: KindFunction, Name: "Second", FileID: f.ID, StartLine: 10, EndLine: 12, Language: "go", Visibility: VisibilityPublic})
	require.NoError(t, err)
	_, err = s.InsertNode(tx, &Node{Kind: KindFunction, Name: "First", FileID: f.ID, StartLine: 1, EndLine: 3, Language: "go", Visibility: VisibilityPublic})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	nodes, err := s.NodesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "First", nodes[0].Name)
	assert.Equal(t, "Second", nodes[1].Name)
}

func TestNodesByIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	a := insertTestNode(t, s, f, "A", KindFunction)
	b := insertTestNode(t, s, f, "B", KindFunction)
	insertTestNode(t, s, f, "C", KindFunction)

	nodes, err := s.NodesByIDs([]int64{a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	names := []string{nodes[0].Name, nodes[1].Name}
	assert.ElementsMatch(t, []string{"A", "B"}, names)
}

func TestNodesByIDs_Empty(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	nodes, err := s.NodesByIDs(nil)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestNodesByKinds(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	insertTestNode(t, s, f, "Foo", KindFunction)
	insertTestNode(t, s, f, "Server", KindStruct)
	insertTestNode(t, s, f, "Bar", KindFunction)

	nodes, err := s.NodesByKinds(KindFunction)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	nodes, err = s.NodesByKinds(KindFunction, KindStruct)
	require.NoError(t, err)
	assert.Len(t, nodes, 3)
}

func TestQueryNodesByName_FilterByKindAndLanguage(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	goFile := insertTestFile(t, s, "/a.go", "go")
	pyFile := insertTestFile(t, s, "/b.py", "python")

	insertTestNode(t, s, goFile, "Run", KindFunction)
	insertTestNode(t, s, goFile, "Run", KindStruct)
	insertTestNode(t, s, pyFile, "Run", KindFunction)

	all, err := s.QueryNodesByName("Run", NodeFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byKind, err := s.QueryNodesByName("Run", NodeFilter{Kinds: []string{KindFunction}})
	require.NoError(t, err)
	assert.Len(t, byKind, 2)

	byLang, err := s.QueryNodesByName("Run", NodeFilter{Language: "go"})
	require.NoError(t, err)
	assert.Len(t, byLang, 2)

	byBoth, err := s.QueryNodesByName("Run", NodeFilter{Kinds: []string{KindFunction}, Language: "go"})
	require.NoError(t, err)
	require.Len(t, byBoth, 1)
	assert.Equal(t, KindFunction, byBoth[0].Kind)
}

func TestQueryNodesByNamePrefix_SubstringAndExactRank(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	insertTestNode(t, s, f, "ServeHTTP", KindMethod)
	insertTestNode(t, s, f, "Serve", KindFunction)
	insertTestNode(t, s, f, "Unrelated", KindFunction)

	got, err := s.QueryNodesByNamePrefix("Serve", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Serve", got[0].Name, "an exact match ranks ahead of a substring match")
}

func TestQueryNodesByNamePrefix_EscapesLikeWildcards(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	insertTestNode(t, s, f, "a_b", KindFunction)
	insertTestNode(t, s, f, "axb", KindFunction)

	got, err := s.QueryNodesByNamePrefix("a_b", 10)
	require.NoError(t, err)
	require.Len(t, got, 1, "a literal underscore in the query must not act as a LIKE wildcard")
	assert.Equal(t, "a_b", got[0].Name)
}
