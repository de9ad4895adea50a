// Package walker discovers source files under a repository root, preferring
// git's own notion of tracked/untracked-but-not-ignored files and falling
// back to a plain filesystem walk when git is unavailable (spec §6 External
// Interfaces, directory indexing).
package walker

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/grahambrooks/codemap/internal/langregistry"
)

// skipDirs are always pruned during the filesystem-walk fallback, since
// they hold generated or vendored code that is never worth indexing.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".git":         true,
}

// IgnoreFileName is an optional gitignore-style glob file consulted by both
// discovery strategies, for repositories that want to exclude paths git
// itself wouldn't (e.g. generated code that is still tracked).
const IgnoreFileName = ".codemapignore"

// List returns every file under root with a supported language extension,
// excluding anything the ignore file says to skip. It tries `git ls-files`
// first (respecting .gitignore) and falls back to a manual filepath.WalkDir
// when root is not a git repository or git is missing; skipDirs and hidden
// directories are pruned only in that fallback walk.
func List(root string) ([]string, error) {
	ignores, err := loadIgnorePatterns(root)
	if err != nil {
		return nil, err
	}

	paths, err := gitListFiles(root)
	if err != nil {
		paths, err = walkListFiles(root)
		if err != nil {
			return nil, err
		}
	}

	if len(ignores) == 0 {
		return paths, nil
	}

	filtered := paths[:0:0]
	for _, p := range paths {
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			rel = p
		}
		if matchesAny(ignores, filepath.ToSlash(rel)) {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered, nil
}

// gitListFiles uses `git ls-files --cached --others --exclude-standard` to
// discover tracked and untracked-but-not-ignored files under root.
func gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("walker: git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if _, ok := langregistry.ForFile(absPath); ok {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem, used when root
// is not a git repository (or git isn't installed). Skips hidden
// directories and skipDirs.
func walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := langregistry.ForFile(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walker: walk directory: %w", err)
	}
	return paths, nil
}

func loadIgnorePatterns(root string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("walker: read %s: %w", IgnoreFileName, err)
	}
	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, nil
}

func matchesAny(patterns []string, relPath string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, relPath); ok {
			return true
		}
		// Also match as a directory-anchored prefix, the way gitignore
		// treats a bare "dirname" entry.
		if ok, _ := doublestar.Match(pat+"/**", relPath); ok {
			return true
		}
	}
	return false
}

// RepoRoot walks up from start looking for a `.git` directory, returning
// start unchanged if none is found (spec §6 CLI: DB path defaults relative
// to the repository root, not the current directory).
func RepoRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return start
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}
