// Package api exposes the manual controller operations over HTTP:
//
//	POST /api/pair/{name}/{force-media|force-idle|force-off|resync|clear-override|clear-breaker}
//
// The pair registry is process-wide, with explicit init/teardown guarded by a
// reference count so multiple owners can share it.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hoveln/framesync/internal/device"
)

// Pair is the set of manual operations a controller exposes.
type Pair interface {
	ForceMode(ctx context.Context, mode device.Mode) error
	Resync(ctx context.Context)
	ClearOverride()
	ClearBreaker()
}

// Server routes manual operation requests to registered pairs.
type Server struct {
	registry *Registry
	logger   *slog.Logger
}

func NewServer(registry *Registry, logger *slog.Logger) *Server {
	return &Server{registry: registry, logger: logger}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := r.PathValue("name")
	op := r.PathValue("op")

	pair, ok := s.registry.Get(name)
	if !ok {
		http.Error(w, "unknown pair", http.StatusNotFound)
		return
	}

	var err error
	switch op {
	case "force-media":
		err = pair.ForceMode(r.Context(), device.ModeMedia)
	case "force-idle":
		err = pair.ForceMode(r.Context(), device.ModeIdle)
	case "force-off":
		err = pair.ForceMode(r.Context(), device.ModeOff)
	case "resync":
		pair.Resync(r.Context())
	case "clear-override":
		pair.ClearOverride()
	case "clear-breaker":
		pair.ClearBreaker()
	default:
		http.Error(w, "unknown operation", http.StatusNotFound)
		return
	}

	if err != nil {
		s.logger.Error("manual operation failed", "pair", name, "op", op, "err", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.logger.Info("manual operation", "pair", name, "op", op)
	w.WriteHeader(http.StatusNoContent)
}

// Register adds the server's route to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/pair/{name}/{op}", s)
}
