package langregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForFile_RecognizedExtensions(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"main.go":       "go",
		"script.py":     "python",
		"app.js":        "javascript",
		"component.jsx": "javascript",
		"app.ts":        "typescript",
		"component.tsx": "typescript",
		"lib.rs":        "rust",
		"Main.java":     "java",
		"header.h":      "c",
		"source.c":      "c",
		"impl.cpp":      "cpp",
		"impl.cc":       "cpp",
		"impl.cxx":      "cpp",
		"header.hpp":    "cpp",
		"index.php":     "php",
		"script.rb":     "ruby",
		"ARCHIVE.GO":    "go",
	}
	for path, want := range cases {
		lang, ok := ForFile(path)
		assert.True(t, ok, "expected %s to resolve", path)
		assert.Equal(t, want, lang, "extension mismatch for %s", path)
	}
}

func TestForFile_UnrecognizedExtensionIsSkippedNotError(t *testing.T) {
	t.Parallel()
	_, ok := ForFile("README.md")
	assert.False(t, ok)

	_, ok = ForFile("Makefile")
	assert.False(t, ok)
}

func TestGrammar_EveryRecognizedExtensionsLanguageHasAGrammar(t *testing.T) {
	t.Parallel()
	for _, name := range []string{
		"go", "python", "javascript", "typescript", "rust",
		"java", "c", "cpp", "php", "ruby",
	} {
		g, ok := Grammar(name)
		assert.True(t, ok, "missing grammar for %s", name)
		assert.NotNil(t, g)
	}

	_, ok := Grammar("cobol")
	assert.False(t, ok)
}
