package toolserver

import (
	"context"
	"encoding/json"
	"io"

	"github.com/grahambrooks/codemap/internal/clog"
)

// ServeStdio reads newline-delimited JSON Request frames from r and writes
// a Response frame for each to w, until r is exhausted (spec §6 `serve`
// with no `--port`). Grounded on the teacher-adjacent MCP server's
// json.Decoder-over-a-stream loop, minus its JSON-RPC envelope — each frame
// here is just {"tool": ..., "params": ...}.
func ServeStdio(ctx context.Context, s *Server, r io.Reader, w io.Writer) error {
	decoder := json.NewDecoder(r)
	encoder := json.NewEncoder(w)

	for {
		var req Request
		if err := decoder.Decode(&req); err != nil {
			if err == io.EOF {
				return nil
			}
			clog.Errorf("stdio frame decode: %v", err)
			if encErr := encoder.Encode(Response{Error: "invalid request frame"}); encErr != nil {
				return encErr
			}
			continue
		}

		resp := s.Dispatch(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}
