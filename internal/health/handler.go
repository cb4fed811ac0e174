package health

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	httputil "tourbook/pkg/http"
	"tourbook/pkg/logger"
)

// Pinger is satisfied by a thin adapter over each backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Response struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

type Handler struct {
	checks map[string]Pinger
	log    *logger.Logger
}

// NewHandler builds liveness/readiness endpoints. Every named check must
// pass for /ready to report ready.
func NewHandler(checks map[string]Pinger, log *logger.Logger) *Handler {
	return &Handler{checks: checks, log: log}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok"})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.checks))
	ready := true
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.log.Error("Dependency health check failed", "dependency", name, "error", err)
			deps[name] = "error"
			ready = false
			continue
		}
		deps[name] = "ok"
	}

	if !ready {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, Response{Status: "unavailable", Dependencies: deps})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, Response{Status: "ready", Dependencies: deps})
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
