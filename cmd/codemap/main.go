// Command codemap indexes a repository into a semantic graph and answers
// navigation queries over it, either directly from the CLI or through the
// tool server (spec §6).
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/grahambrooks/codemap/internal/walker"
)

var (
	flagDB     string
	flagFormat string
)

// errorHandled is set once an error has already been printed, so main()
// doesn't print it a second time.
var errorHandled bool

// exitCode lets a command override the default failure exit code (1).
// index sets this to 2 on fatal I/O, matching spec §6's exit-code table;
// every other command's non-zero path keeps the cobra default.
var exitCode = 1

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(exitCode)
	}
}

var rootCmd = &cobra.Command{
	Use:           "codemap",
	Short:         "Deterministic semantic code intelligence over tree-sitter and SQLite",
	Long:          "codemap indexes source code into a graph of symbols and typed edges, then answers navigation queries against it: callers, callees, impact, hierarchy, and more.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .codemap/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(contextCmd)
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be json or text", format)
}

// resolveDBPath returns the database path from --db, relative to repoRoot
// when not absolute, defaulting to .codemap/index.db (spec §6 persisted
// state layout).
func resolveDBPath(repoRoot string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	return filepath.Join(repoRoot, ".codemap", "index.db")
}

// repoRootFor walks up from dir looking for .git, falling back to dir
// itself (internal/walker.RepoRoot). CODEMAP_ROOT overrides the walk
// entirely when set (spec §6 environment: "CODEMAP_ROOT overrides the
// repository root").
func repoRootFor(dir string) string {
	if root := os.Getenv("CODEMAP_ROOT"); root != "" {
		return root
	}
	return walker.RepoRoot(dir)
}

func currentDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	return dir, nil
}
