package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/grahambrooks/codemap"
)

var flagLimit int

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Print store counts",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Print matching symbols",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var contextCmd = &cobra.Command{
	Use:   "context <task>",
	Short: "Print a task-focused context bundle",
	Args:  cobra.ExactArgs(1),
	RunE:  runContext,
}

func init() {
	searchCmd.Flags().IntVar(&flagLimit, "limit", 50, "maximum results")
	contextCmd.Flags().IntVar(&flagLimit, "limit", 20, "maximum results")
}

// openEngineReadOnly opens the Store for path (default cwd) without
// mutating it, for the read-only status/search/context commands.
func openEngineReadOnly(args []string, argIdx int) (*codemap.Engine, error) {
	dir := "."
	if len(args) > argIdx {
		dir = args[argIdx]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	repoRoot := repoRootFor(abs)
	dbPath := resolveDBPath(repoRoot)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'codemap index' first)", dbPath)
	}
	return codemap.Open(dbPath, "")
}

func runStatus(cmd *cobra.Command, args []string) error {
	engine, err := openEngineReadOnly(args, 0)
	if err != nil {
		return err
	}
	defer engine.Close()

	counts, err := engine.Store().Stats()
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}

	if flagFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(counts)
	}
	fmt.Printf("files:      %d\n", counts.Files)
	fmt.Printf("nodes:      %d\n", counts.Nodes)
	fmt.Printf("edges:      %d\n", counts.Edges)
	fmt.Printf("unresolved: %d\n", counts.Unresolved)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	engine, err := openEngineReadOnly(nil, 0)
	if err != nil {
		return err
	}
	defer engine.Close()

	results, err := engine.Query().Search(args[0], flagLimit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return printNodeResults(results)
}

func runContext(cmd *cobra.Command, args []string) error {
	engine, err := openEngineReadOnly(nil, 0)
	if err != nil {
		return err
	}
	defer engine.Close()

	results, err := engine.Query().Context(args[0], flagLimit)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}
	return printNodeResults(results)
}

func printNodeResults(results []codemap.NodeResult) error {
	if flagFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tVISIBILITY\tFILE\tLINE")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", r.Name, r.Kind, r.Visibility, r.FilePath, r.StartLine)
	}
	return tw.Flush()
}
