// Package httptransport assembles the public HTTP surface from the per-module
// handlers. Each module owns its own routes and middleware chain; the router
// only decides where they mount and adds the operational endpoints.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"portrait/pkg/platform/httputil"
)

// ModuleHandler is implemented by every per-module HTTP handler.
type ModuleHandler interface {
	Register(r chi.Router)
}

// Handlers collects the module handlers the router mounts. Nil entries are
// skipped so partial deployments stay possible.
type Handlers struct {
	Delegation ModuleHandler
	Identity   ModuleHandler
	Team       ModuleHandler
	Token      ModuleHandler
	Admin      ModuleHandler
}

// NewRouter wires all public endpoints.
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	mount(r, "/delegation", h.Delegation)
	mount(r, "/identity", h.Identity)
	mount(r, "/team", h.Team)
	mount(r, "/token", h.Token)
	mount(r, "/admin", h.Admin)

	return r
}

func mount(r chi.Router, prefix string, h ModuleHandler) {
	if h == nil {
		return
	}
	r.Route(prefix, h.Register)
}
