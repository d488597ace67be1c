// Package debugserver exposes a read-only JSON introspection surface over
// the client's internal pipeline health: connection pool occupancy,
// pending alarm timers, and bulk coordinator queue depth (spec §4.8).
// Never started automatically; only when ClientOptions.DebugAddr is set.
package debugserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/rat-data/colstore/internal/actor"
	"github.com/rat-data/colstore/internal/bulk"
	"github.com/rat-data/colstore/internal/transport"
)

// Server holds the dependencies the debug endpoints read from. All
// fields are read-only accessors; debugserver never mutates client
// state.
type Server struct {
	Transport *transport.Client
	Alarms    *actor.AlarmClock
	Bulk      *bulk.Coordinator
	Logger    *slog.Logger
}

// poolStatsResponse is the /debug/pool JSON shape, keyed by host address.
type poolStatsResponse map[string]transport.Stats

// alarmsResponse is the /debug/alarms JSON shape.
type alarmsResponse struct {
	Pending          int        `json:"pending"`
	EarliestDeadline *time.Time `json:"earliest_deadline,omitempty"`
}

// bulkResponse is the /debug/bulk JSON shape.
type bulkResponse struct {
	QueuedWrites int `json:"queued_writes"`
	QueuedReads  int `json:"queued_reads"`
}

// NewRouter builds the chi router serving the debug endpoints. CORS is
// wide open since this surface is meant for local operator tooling, not
// browser-facing production traffic.
func NewRouter(srv *Server) chi.Router {
	if srv.Logger == nil {
		srv.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET"},
		AllowedOrigins: []string{"*"},
	}))

	r.Get("/debug/pool", srv.handlePool)
	r.Get("/debug/alarms", srv.handleAlarms)
	r.Get("/debug/bulk", srv.handleBulk)
	return r
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	var resp poolStatsResponse
	if s.Transport != nil {
		resp = s.Transport.PoolStats()
	}
	writeJSON(w, resp)
}

func (s *Server) handleAlarms(w http.ResponseWriter, r *http.Request) {
	resp := alarmsResponse{}
	if s.Alarms != nil {
		resp.Pending = s.Alarms.Pending()
		if d, ok := s.Alarms.EarliestDeadline(); ok {
			resp.EarliestDeadline = &d
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	resp := bulkResponse{}
	if s.Bulk != nil {
		resp.QueuedWrites, resp.QueuedReads = s.Bulk.QueueDepth()
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("debugserver: failed to encode JSON response", "error", err)
	}
}
