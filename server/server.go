// Package server provides an HTTP/JSON API over a graphground database.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mstrYoda/graphground"
)

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server wraps a graphground.DB and exposes an HTTP/JSON API.
type Server struct {
	db  *graphground.DB
	log *slog.Logger
	mux *http.ServeMux
}

// New creates a ready-to-use Server.
func New(db *graphground.DB) *Server {
	s := &Server{db: db, log: db.Logger()}
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

// ServeHTTP implements http.Handler with CORS headers.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/slow-queries", s.handleSlowQueries)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)

	s.mux.HandleFunc("POST /api/ground", s.handleGround)

	s.mux.HandleFunc("GET /api/nodes/{id}", s.handleGetNode)
	s.mux.HandleFunc("POST /api/nodes", s.handleCreateNode)
	s.mux.HandleFunc("POST /api/edges", s.handleCreateEdge)
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Stats and metrics
// ---------------------------------------------------------------------------

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.db.Stats()
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{
		"graph":   stats,
		"metrics": s.db.Metrics().Snapshot(),
	})
}

func (s *Server) handleSlowQueries(w http.ResponseWriter, r *http.Request) {
	entries := s.db.SlowQueries(intQuery(r, "limit", 20))
	writeJSON(w, 200, map[string]any{"queries": entries})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.db.Metrics().WritePrometheus(w)
}

// ---------------------------------------------------------------------------
// Grounding
// ---------------------------------------------------------------------------

type groundRequest struct {
	Pattern          graphground.PatternDoc `json:"pattern"`
	Limit            int                    `json:"limit"`
	DistinctBindings bool                   `json:"distinct_bindings"`
}

type groundingJSON struct {
	Vars    map[string]uint64 `json:"vars"`
	Clauses []clauseJSON      `json:"clauses"`
}

// clauseJSON is one grounded clause; Index is its position among the
// pattern's mandatory clauses, so clauses with the same text stay distinct.
type clauseJSON struct {
	Index  int    `json:"index"`
	Clause string `json:"clause"`
	Edge   uint64 `json:"edge"`
}

type groundResponse struct {
	Groundings []groundingJSON `json:"groundings"`
	Count      int             `json:"count"`
	DurationMs float64         `json:"duration_ms"`
}

func (s *Server) handleGround(w http.ResponseWriter, r *http.Request) {
	var req groundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON body")
		return
	}
	pat, err := req.Pattern.Build()
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}

	res, err := s.db.Ground(r.Context(), pat, graphground.GroundOptions{
		Limit:            req.Limit,
		DistinctBindings: req.DistinctBindings,
	})
	if err != nil {
		status := 500
		switch {
		case errors.Is(err, graphground.ErrResultTooLarge):
			status = 422
		case errors.Is(err, graphground.ErrBadPredicate):
			status = 400
		}
		writeError(w, status, err.Error())
		return
	}

	resp := groundResponse{
		Groundings: make([]groundingJSON, 0, res.Len()),
		Count:      res.Len(),
		DurationMs: float64(res.Duration.Microseconds()) / 1000.0,
	}
	for _, g := range res.Groundings {
		gj := groundingJSON{
			Vars:    make(map[string]uint64, len(g.Vars)),
			Clauses: make([]clauseJSON, 0, len(g.Clauses)),
		}
		for v, id := range g.Vars {
			gj.Vars[string(v)] = uint64(id)
		}
		for i, c := range pat.Mandatory() {
			if id, ok := g.Clauses[c]; ok {
				gj.Clauses = append(gj.Clauses, clauseJSON{Index: i, Clause: c.String(), Edge: uint64(id)})
			}
		}
		resp.Groundings = append(resp.Groundings, gj)
	}
	writeJSON(w, 200, resp)
}

// ---------------------------------------------------------------------------
// Nodes and edges
// ---------------------------------------------------------------------------

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, 400, "invalid node id")
		return
	}
	node, err := s.db.GetNode(graphground.NodeID(id))
	if err != nil {
		if errors.Is(err, graphground.ErrNotFound) {
			writeError(w, 404, err.Error())
			return
		}
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, node)
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Props map[string]any `json:"props"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON body")
		return
	}
	id, err := s.db.AddNode(req.Props)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 201, map[string]any{"id": id})
}

func (s *Server) handleCreateEdge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From  uint64         `json:"from"`
		To    uint64         `json:"to"`
		Label string         `json:"label"`
		Props map[string]any `json:"props"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON body")
		return
	}
	if req.Label == "" {
		writeError(w, 400, "label is required")
		return
	}
	id, err := s.db.AddEdge(graphground.NodeID(req.From), graphground.NodeID(req.To), req.Label, req.Props)
	if err != nil {
		if errors.Is(err, graphground.ErrNotFound) {
			writeError(w, 404, err.Error())
			return
		}
		s.log.Error("create edge failed", "error", err)
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 201, map[string]any{"id": id})
}

func intQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
