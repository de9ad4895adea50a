package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/grahambrooks/codemap"
	"github.com/grahambrooks/codemap/scripts"
)

var (
	flagForce      bool
	flagLanguages  string
	flagScriptsDir string
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a repository for semantic analysis",
	Long:  "Parses source files with tree-sitter, runs extraction scripts, and writes the resulting graph to the SQLite database.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
	indexCmd.Flags().StringVar(&flagLanguages, "languages", "", "comma-separated language filter (e.g. go,typescript)")
	indexCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "load extraction scripts from disk instead of the embedded copy")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}
	abs, err := filepath.Abs(targetDir)
	if err != nil {
		exitCode = 2
		return fmt.Errorf("resolving path %q: %w", targetDir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		exitCode = 2
		return fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		exitCode = 2
		return fmt.Errorf("not a directory: %s", abs)
	}

	repoRoot := repoRootFor(abs)
	dbPath := resolveDBPath(repoRoot)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		exitCode = 2
		return fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}

	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			exitCode = 2
			return fmt.Errorf("removing database for --force: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", dbPath)
	}

	var opts []codemap.Option
	if flagLanguages != "" {
		langs := strings.Split(flagLanguages, ",")
		for i := range langs {
			langs[i] = strings.TrimSpace(langs[i])
		}
		opts = append(opts, codemap.WithLanguages(langs...))
	}
	scriptsDir := flagScriptsDir
	if scriptsDir == "" {
		opts = append(opts, codemap.WithScriptsFS(scripts.FS))
	}

	engine, err := codemap.Open(dbPath, scriptsDir, opts...)
	if err != nil {
		exitCode = 2
		return fmt.Errorf("opening engine: %w", err)
	}
	defer engine.Close()

	result, err := engine.IndexDirectory(context.Background(), abs)
	if err != nil {
		exitCode = 2
		return fmt.Errorf("indexing: %w", err)
	}

	duration := time.Since(start)
	if flagFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(os.Stderr, "Indexed %s in %s\n", abs, duration.Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "  inserted=%d updated=%d unchanged=%d skipped=%d pruned=%d\n",
		result.Inserted, result.Updated, result.Unchanged, result.Skipped, result.Pruned)
	fmt.Fprintf(os.Stderr, "  resolved=%d ambiguous=%d unmatched=%d\n",
		result.Resolved, result.Ambiguous, result.Unmatched)
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "  error: %v\n", e)
	}
	return nil
}
