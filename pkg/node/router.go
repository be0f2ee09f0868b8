package node

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ryandielhenn/zephyrcore/internal/telemetry"
)

// NewRouter mounts the node endpoints. Each route is instrumented under its
// own op label.
func NewRouter(n *Node) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/healthz", telemetry.Instrument("healthz", http.HandlerFunc(n.Healthz)))
	r.Method(http.MethodGet, "/info", telemetry.Instrument("info", http.HandlerFunc(n.Info)))
	r.Method(http.MethodGet, "/metrics", telemetry.MetricsHandler())

	r.Route("/kv", func(r chi.Router) {
		r.Method(http.MethodPut, "/*", telemetry.Instrument("put", http.HandlerFunc(n.Put)))
		r.Method(http.MethodPost, "/*", telemetry.Instrument("put_if_absent", http.HandlerFunc(n.PutIfAbsent)))
		r.Method(http.MethodPatch, "/*", telemetry.Instrument("set", http.HandlerFunc(n.Set)))
		r.Method(http.MethodGet, "/*", telemetry.Instrument("get", http.HandlerFunc(n.Get)))
		r.Method(http.MethodDelete, "/*", telemetry.Instrument("delete", http.HandlerFunc(n.Del)))
	})
	return r
}
