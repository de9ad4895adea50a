package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertFile_Inserted(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	tx, err := s.db.Begin()
	require.NoError(t, err)

	f := &File{Path: "/main.go", Language: "go", ContentHash: "abc"}
	state, err := s.UpsertFile(tx, f)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, FileInserted, state)
	require.Positive(t, f.ID)

	got, err := s.FileByPath("/main.go")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "go", got.Language)
	assert.Equal(t, "abc", got.ContentHash)
}

func TestUpsertFile_UnchangedHashSkipsRewrite(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")

	tx, err := s.db.Begin()
	require.NoError(t, err)
	again := &File{Path: "/main.go", Language: "go", ContentHash: f.ContentHash}
	state, err := s.UpsertFile(tx, again)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, FileUnchanged, state)
	assert.Equal(t, f.ID, again.ID, "unchanged upsert reuses the existing row id")
}

func TestUpsertFile_ChangedHashReplacesStaleAndCascades(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")

	tx, err := s.db.Begin()
	require.NoError(t, err)
	nodeID, err := s.InsertNode(tx, &Node{Kind: KindFunction, Name: "Old", FileID: f.ID, StartLine: 1, EndLine: 2, Language: "go", Visibility: VisibilityPublic})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx, err = s.db.Begin()
	require.NoError(t, err)
	replacement := &File{Path: "/main.go", Language: "go", ContentHash: "different"}
	state, err := s.UpsertFile(tx, replacement)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, FileReplacedStale, state)
	assert.NotEqual(t, f.ID, replacement.ID, "a content change gets a fresh file row")

	n, err := s.NodeByID(nodeID)
	require.NoError(t, err)
	assert.Nil(t, n, "the stale file's owned nodes are cascaded away")
}

func TestUpsertFile_DefaultsLastIndexedWhenZero(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	tx, err := s.db.Begin()
	require.NoError(t, err)
	f := &File{Path: "/x.go", Language: "go", ContentHash: "h"}
	_, err = s.UpsertFile(tx, f)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.False(t, f.LastIndexed.IsZero())
	assert.WithinDuration(t, time.Now(), f.LastIndexed, 5*time.Second)
}

func TestFileByPath_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	got, err := s.FileByPath("/nowhere.go")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteFile_CascadesNodesEdgesAndUnresolved(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")

	tx, err := s.db.Begin()
	require.NoError(t, err)
	callerID, err := s.InsertNode(tx, &Node{Kind: KindFunction, Name: "Foo", FileID: f.ID, StartLine: 1, EndLine: 2, Language: "go", Visibility: VisibilityPublic})
	require.NoError(t, err)
	calleeID, err := s.InsertNode(tx, &Node{Kind: KindFunction, Name: "Bar", FileID: f.ID, StartLine: 3, EndLine: 4, Language: "go", Visibility: VisibilityPublic})
	require.NoError(t, err)
	require.NoError(t, s.InsertEdge(tx, &Edge{Kind: EdgeCalls, SourceID: callerID, TargetID: calleeID, FileID: f.ID}))
	_, err = s.InsertUnresolved(tx, &UnresolvedReference{SourceNodeID: callerID, ReferenceName: "Baz", ReferenceKind: EdgeCalls, FileID: f.ID})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.NoError(t, s.DeleteFile("/main.go"))

	got, err := s.FileByPath("/main.go")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := s.NodeByID(callerID)
	require.NoError(t, err)
	assert.Nil(t, n)

	edges, err := s.Neighbours(callerID, Outgoing, "")
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestDeleteFile_MissingPathIsNoop(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.DeleteFile("/never/existed.go"))
}

func TestFilesByLanguage(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestFile(t, s, "/a.go", "go")
	insertTestFile(t, s, "/b.go", "go")
	insertTestFile(t, s, "/c.py", "python")

	goFiles, err := s.FilesByLanguage("go")
	require.NoError(t, err)
	assert.Len(t, goFiles, 2)

	pyFiles, err := s.FilesByLanguage("python")
	require.NoError(t, err)
	assert.Len(t, pyFiles, 1)
}

func TestDistinctLanguages(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestFile(t, s, "/a.go", "go")
	insertTestFile(t, s, "/b.py", "python")
	insertTestFile(t, s, "/c.go", "go")

	langs, err := s.DistinctLanguages()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"go", "python"}, langs)
}

func TestAllFilePaths(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := insertTestFile(t, s, "/a.go", "go")
	b := insertTestFile(t, s, "/b.go", "go")

	paths, err := s.AllFilePaths()
	require.NoError(t, err)
	assert.Equal(t, "/a.go", paths[a.ID])
	assert.Equal(t, "/b.go", paths[b.ID])
}
