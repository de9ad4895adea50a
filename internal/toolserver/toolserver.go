// Package toolserver implements the sixteen-tool surface of spec §6 over
// two transports: newline-delimited JSON frames on stdio, and JSON-over-
// HTTP POST /tools/<name>. Both transports share the same handler registry,
// grounded on the teacher-adjacent MCP server's envelope-then-dispatch
// shape (decode a raw frame, look up a handler by name, encode its result
// or its error), simplified to this spec's flat request/response frames
// rather than full JSON-RPC 2.0.
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/grahambrooks/codemap/internal/clog"
)

// Request is one stdio frame or one HTTP POST body.
type Request struct {
	Tool   string          `json:"tool,omitempty"`
	Params json.RawMessage `json:"params"`
}

// Response is one stdio frame or one HTTP response body. Exactly one of
// Result/Error is set.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// BadRequest marks a handler error as a malformed-parameters error (spec
// §7 BadRequest), as opposed to an internal failure — both render as the
// same {"error": "..."} frame, but a BadRequest never gets logged as a
// server-side fault.
type BadRequest struct{ msg string }

func (e *BadRequest) Error() string { return e.msg }

// badRequestf builds a BadRequest with a formatted message.
func badRequestf(format string, args ...any) error {
	return &BadRequest{msg: fmt.Sprintf(format, args...)}
}

// Handler answers one tool invocation.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Server dispatches tool invocations to a fixed handler registry (spec §6
// tool surface table — sixteen tools, built once per Engine).
type Server struct {
	handlers map[string]Handler
}

// New builds a Server with handlers bound to engine.
func New(engine Engine) *Server {
	return &Server{handlers: registerTools(engine)}
}

// Dispatch runs one request against the registry, never panicking on a
// malformed or unknown tool — every failure mode becomes a Response.Error
// (spec §7: "never a panic").
func (s *Server) Dispatch(ctx context.Context, req Request) Response {
	h, ok := s.handlers[req.Tool]
	if !ok {
		return Response{Error: fmt.Sprintf("unknown tool %q", req.Tool)}
	}
	result, err := h(ctx, req.Params)
	if err != nil {
		var br *BadRequest
		if !asBadRequest(err, &br) {
			clog.Errorf("tool %s: %v", req.Tool, err)
		}
		return Response{Error: err.Error()}
	}
	return Response{Result: result}
}

func asBadRequest(err error, target **BadRequest) bool {
	br, ok := err.(*BadRequest)
	if ok {
		*target = br
	}
	return ok
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return badRequestf("invalid parameters: %v", err)
	}
	return nil
}
