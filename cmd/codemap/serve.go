package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grahambrooks/codemap"
	"github.com/grahambrooks/codemap/internal/toolserver"
	"github.com/grahambrooks/codemap/scripts"
)

var flagPort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tool server",
	Long:  "Serves the sixteen-tool navigation surface: newline-delimited JSON frames on stdio when --port is absent, JSON-over-HTTP otherwise.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "HTTP port; when unset, serve over stdio")
}

func runServe(cmd *cobra.Command, args []string) error {
	dir, err := currentDir()
	if err != nil {
		return err
	}
	repoRoot := repoRootFor(dir)
	dbPath := resolveDBPath(repoRoot)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database not found: %s (run 'codemap index' first)", dbPath)
	}

	engine, err := codemap.Open(dbPath, "", codemap.WithScriptsFS(scripts.FS))
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer engine.Close()

	server := toolserver.New(engine)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if flagPort == 0 {
		return toolserver.ServeStdio(ctx, server, os.Stdin, os.Stdout)
	}

	addr := fmt.Sprintf(":%d", flagPort)
	httpServer := &http.Server{Addr: addr, Handler: toolserver.HTTPHandler(server)}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	fmt.Fprintf(os.Stderr, "codemap tool server listening on %s\n", addr)
	select {
	case <-ctx.Done():
		return httpServer.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
