package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grahambrooks/codemap/internal/store"
)

// scriptsDir locates the repo's scripts/ directory regardless of which
// package's test binary is running, by walking up from cwd to the module
// root (marked by go.mod).
func scriptsDir(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "scripts")
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find module root (no go.mod found upward from cwd)")
		}
		dir = parent
	}
}

func commit(t *testing.T, b *store.Batch) (*store.Store, store.FileState) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "index.db")
	s, err := store.Open(dbPath, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	state, err := s.CommitBatch(b)
	require.NoError(t, err)
	return s, state
}

func TestExtract_GoSimpleFunctionAndCall(t *testing.T) {
	t.Parallel()
	e := New(scriptsDir(t))
	src := `package main

func greet(name string) string {
	return "hi " + name
}

func main() {
	greet("world")
}
`
	b, err := e.Extract(context.Background(), "/src/main.go", []byte(src))
	require.NoError(t, err)

	s, _ := commit(t, b)
	f, err := s.FileByPath("/src/main.go")
	require.NoError(t, err)
	require.NotNil(t, f)

	nodes, err := s.NodesByFile(f.ID)
	require.NoError(t, err)

	var greetFn, mainFn *store.Node
	for _, n := range nodes {
		switch n.Name {
		case "greet":
			greetFn = n
		case "main":
			mainFn = n
		}
	}
	require.NotNil(t, greetFn)
	require.NotNil(t, mainFn)
	assert.Equal(t, store.KindFunction, greetFn.Kind)
	assert.Equal(t, store.VisibilityPrivate, greetFn.Visibility, "lower-case Go identifiers are unexported")
	assert.Equal(t, store.VisibilityPrivate, mainFn.Visibility, "main is lower-case too, so it's unexported by the same rule")

	page, err := s.UnresolvedPage(0, 100)
	require.NoError(t, err)
	var sawCall bool
	for _, u := range page {
		if u.ReferenceName == "greet" && u.ReferenceKind == store.EdgeCalls {
			sawCall = true
		}
	}
	assert.True(t, sawCall, "main's call to greet should be recorded as an unresolved calls reference")
}

func TestExtract_GoExportedFunctionIsPublic(t *testing.T) {
	t.Parallel()
	e := New(scriptsDir(t))
	src := `package widgets

func Build() {
}

func helper() {
}
`
	b, err := e.Extract(context.Background(), "/src/widgets.go", []byte(src))
	require.NoError(t, err)
	s, _ := commit(t, b)
	f, _ := s.FileByPath("/src/widgets.go")
	nodes, err := s.NodesByFile(f.ID)
	require.NoError(t, err)

	var build, helper *store.Node
	for _, n := range nodes {
		switch n.Name {
		case "Build":
			build = n
		case "helper":
			helper = n
		}
	}
	require.NotNil(t, build)
	require.NotNil(t, helper)
	assert.Equal(t, store.VisibilityPublic, build.Visibility)
	assert.Equal(t, store.VisibilityPrivate, helper.Visibility)
}

func TestExtract_GoMethodAttachedToReceiverStruct(t *testing.T) {
	t.Parallel()
	e := New(scriptsDir(t))
	src := `package server

type Server struct {
	addr string
}

func (s *Server) Serve() {
}
`
	b, err := e.Extract(context.Background(), "/src/server.go", []byte(src))
	require.NoError(t, err)
	s, _ := commit(t, b)
	f, _ := s.FileByPath("/src/server.go")
	nodes, err := s.NodesByFile(f.ID)
	require.NoError(t, err)

	var structNode, methodNode *store.Node
	for _, n := range nodes {
		switch {
		case n.Name == "Server" && n.Kind == store.KindStruct:
			structNode = n
		case n.Name == "Serve":
			methodNode = n
		}
	}
	require.NotNil(t, structNode)
	require.NotNil(t, methodNode)

	edges, err := s.Neighbours(structNode.ID, store.Outgoing, store.EdgeContains)
	require.NoError(t, err)
	var containsMethod bool
	for _, edge := range edges {
		if edge.TargetID == methodNode.ID {
			containsMethod = true
		}
	}
	assert.True(t, containsMethod, "a method should be contained by its receiver's struct, not just the file")
}

func TestExtract_GoImportRecordsLastPathSegment(t *testing.T) {
	t.Parallel()
	e := New(scriptsDir(t))
	src := `package main

import "net/http"

func handle() {
	http.ListenAndServe(":8080", nil)
}
`
	b, err := e.Extract(context.Background(), "/src/main.go", []byte(src))
	require.NoError(t, err)
	s, _ := commit(t, b)

	page, err := s.UnresolvedPage(0, 100)
	require.NoError(t, err)
	var sawImport bool
	for _, u := range page {
		if u.ReferenceKind == store.EdgeImports && u.ReferenceName == "http" {
			sawImport = true
		}
	}
	assert.True(t, sawImport, "the import of net/http should record its last path segment as the reference name")
}

func TestExtract_EmptyFileStillYieldsFileNode(t *testing.T) {
	t.Parallel()
	e := New(scriptsDir(t))
	b, err := e.Extract(context.Background(), "/src/empty.go", []byte("package main\n"))
	require.NoError(t, err)
	s, _ := commit(t, b)

	f, err := s.FileByPath("/src/empty.go")
	require.NoError(t, err)
	require.NotNil(t, f)

	nodes, err := s.NodesByFile(f.ID)
	require.NoError(t, err)
	var sawFileNode bool
	for _, n := range nodes {
		if n.Kind == store.KindFile {
			sawFileNode = true
		}
	}
	assert.True(t, sawFileNode, "every extracted file gets a synthetic file node, even with nothing else in it")
}

func TestExtract_PythonFunctionAndClassMethod(t *testing.T) {
	t.Parallel()
	e := New(scriptsDir(t))
	src := `class Greeter:
    def greet(self, name):
        return self._format(name)

    def _format(self, name):
        return "hi " + name


def main():
    Greeter().greet("world")
`
	b, err := e.Extract(context.Background(), "/src/greet.py", []byte(src))
	require.NoError(t, err)
	s, _ := commit(t, b)
	f, _ := s.FileByPath("/src/greet.py")
	nodes, err := s.NodesByFile(f.ID)
	require.NoError(t, err)

	var class, greetMethod, formatMethod *store.Node
	for _, n := range nodes {
		switch {
		case n.Kind == store.KindClass:
			class = n
		case n.Name == "greet":
			greetMethod = n
		case n.Name == "_format":
			formatMethod = n
		}
	}
	require.NotNil(t, class)
	require.NotNil(t, greetMethod)
	require.NotNil(t, formatMethod)
	assert.Equal(t, store.VisibilityPublic, greetMethod.Visibility)
	assert.Equal(t, store.VisibilityPrivate, formatMethod.Visibility, "a leading underscore marks a Python method private by convention")

	edges, err := s.Neighbours(class.ID, store.Outgoing, store.EdgeContains)
	require.NoError(t, err)
	assert.Len(t, edges, 2, "both methods nest inside the class body lexically")
}

func TestExtract_UnsupportedExtensionErrors(t *testing.T) {
	t.Parallel()
	e := New(scriptsDir(t))
	_, err := e.Extract(context.Background(), "/src/notes.txt", []byte("hello"))
	assert.Error(t, err)
}

func TestExtract_UnchangedContentIsIdempotentAcrossRuns(t *testing.T) {
	t.Parallel()
	e := New(scriptsDir(t))
	src := []byte("package main\n\nfunc main() {\n}\n")

	dbPath := filepath.Join(t.TempDir(), "index.db")
	s, err := store.Open(dbPath, 5*time.Second)
	require.NoError(t, err)
	defer s.Close()

	b1, err := e.Extract(context.Background(), "/src/main.go", src)
	require.NoError(t, err)
	state1, err := s.CommitBatch(b1)
	require.NoError(t, err)
	assert.Equal(t, store.FileInserted, state1)

	b2, err := e.Extract(context.Background(), "/src/main.go", src)
	require.NoError(t, err)
	state2, err := s.CommitBatch(b2)
	require.NoError(t, err)
	assert.Equal(t, store.FileUnchanged, state2)

	counts, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Files)
}

func TestContentHash_StableAndSensitiveToChange(t *testing.T) {
	t.Parallel()
	h1 := ContentHash([]byte("package main\n"))
	h2 := ContentHash([]byte("package main\n"))
	h3 := ContentHash([]byte("package other\n"))
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}
