package toolserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/grahambrooks/codemap/internal/clog"
)

// HTTPHandler serves POST /tools/<name> (spec §6 `serve --port N`). The
// tool name comes from the path, not the request body, so the body is just
// the tool's params object directly.
func HTTPHandler(s *Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/tools/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			json.NewEncoder(w).Encode(Response{Error: "method not allowed"})
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/tools/")
		if name == "" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(Response{Error: "missing tool name"})
			return
		}

		var params json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil && err.Error() != "EOF" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(Response{Error: "invalid JSON body: " + err.Error()})
			return
		}

		resp := s.Dispatch(r.Context(), Request{Tool: name, Params: params})
		w.Header().Set("Content-Type", "application/json")
		if resp.Error != "" {
			w.WriteHeader(http.StatusBadRequest)
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			clog.Errorf("http response encode: %v", err)
		}
	})
	return mux
}
