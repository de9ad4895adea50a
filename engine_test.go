package codemap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grahambrooks/codemap/internal/extractor"
)

func testScriptsDir(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "scripts")
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find module root")
		}
		dir = parent
	}
}

func openEngine(t *testing.T) *Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "index.db")
	e, err := Open(dbPath, testScriptsDir(t))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOpen_StoreAndQueryAccessible(t *testing.T) {
	t.Parallel()
	e := openEngine(t)
	assert.NotNil(t, e.Store())
	assert.NotNil(t, e.Query())
}

func TestIndexDirectory_IndexesAndResolvesAcrossFiles(t *testing.T) {
	t.Parallel()
	e := openEngine(t)
	dir := t.TempDir()
	writeFile(t, dir, "caller.go", "package main\n\nfunc main() {\n\tGreet(\"world\")\n}\n")
	writeFile(t, dir, "greet.go", "package main\n\nfunc Greet(name string) string {\n\treturn \"hi \" + name\n}\n")

	result, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 1, result.Resolved)
	assert.Zero(t, result.Ambiguous)

	callers, err := e.Query().Callers("Greet")
	require.NoError(t, err)
	require.Len(t, callers, 1)
	assert.Equal(t, "main", callers[0].Name)
}

func TestIndexDirectory_SecondPassUnchangedFilesAreSkippedFromInsert(t *testing.T) {
	t.Parallel()
	e := openEngine(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package main\n\nfunc A() {}\n")

	first, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Inserted)

	second, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 1, second.Unchanged)
}

func TestIndexDirectory_PrunesFilesDeletedFromDisk(t *testing.T) {
	t.Parallel()
	e := openEngine(t)
	dir := t.TempDir()
	keep := writeFile(t, dir, "keep.go", "package main\n\nfunc Keep() {}\n")
	gone := writeFile(t, dir, "gone.go", "package main\n\nfunc Gone() {}\n")
	_ = keep

	_, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)

	require.NoError(t, os.Remove(gone))

	result, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pruned)

	f, err := e.Store().FileByPath(gone)
	require.NoError(t, err)
	assert.Nil(t, f, "the deleted file's store row should be pruned")

	stillThere, err := e.Store().FileByPath(keep)
	require.NoError(t, err)
	assert.NotNil(t, stillThere)
}

func TestIndexFiles_DoesNotPrune(t *testing.T) {
	t.Parallel()
	e := openEngine(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "package main\n\nfunc A() {}\n")
	b := writeFile(t, dir, "b.go", "package main\n\nfunc B() {}\n")

	_, err := e.IndexFiles(context.Background(), []string{a, b})
	require.NoError(t, err)

	require.NoError(t, os.Remove(b))

	result, err := e.IndexFiles(context.Background(), []string{a})
	require.NoError(t, err)
	assert.Zero(t, result.Pruned, "IndexFiles never prunes, even if a previously indexed file vanished")

	f, err := e.Store().FileByPath(b)
	require.NoError(t, err)
	assert.NotNil(t, f, "IndexFiles leaves stale records for paths it wasn't asked about")
}

func TestResolve_CanBeTriggeredDirectlyAfterIndexFiles(t *testing.T) {
	t.Parallel()
	e := openEngine(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "package main\n\nfunc main() {\n\tHelper()\n}\n")
	b := writeFile(t, dir, "b.go", "package main\n\nfunc Helper() {}\n")

	_, err := e.IndexFiles(context.Background(), []string{a, b})
	require.NoError(t, err)

	stats, err := e.Resolve(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Resolved, "the resolve already ran inside IndexFiles; nothing should be left pending")
}

func TestRebuild_ClearsStoreForFreshReindex(t *testing.T) {
	t.Parallel()
	e := openEngine(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package main\n\nfunc A() {}\n")

	_, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)

	require.NoError(t, e.Rebuild())

	stats, err := e.Store().Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Files)
	assert.Zero(t, stats.Nodes)

	result, err := e.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted, "a rebuilt store indexes as if from scratch")
}

func TestIndexResult_MarshalJSONPreservesEngineLevelFields(t *testing.T) {
	t.Parallel()
	result := IndexResult{
		Result:    extractor.Result{Inserted: 1},
		Pruned:    2,
		Resolved:  3,
		Ambiguous: 1,
		Unmatched: 4,
	}
	data, err := result.MarshalJSON()
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, `"Pruned":2`)
	assert.Contains(t, s, `"Resolved":3`)
	assert.Contains(t, s, `"Ambiguous":1`)
	assert.Contains(t, s, `"Unmatched":4`)
}

func TestIsDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	file := writeFile(t, dir, "a.go", "package main\n")

	assert.True(t, IsDir(dir))
	assert.False(t, IsDir(file))
	assert.False(t, IsDir(filepath.Join(dir, "does-not-exist")))
}
