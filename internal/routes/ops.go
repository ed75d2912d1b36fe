package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/dukerupert/emporium/internal/handler"
	"github.com/dukerupert/emporium/internal/middleware"
	"github.com/dukerupert/emporium/internal/router"
)

const pingTimeout = 2 * time.Second

// RegisterOpsRoutes registers /health and /metrics. Neither requires
// authentication; restrict /metrics at the network edge.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.Ping != nil {
			ctx, cancel := context.WithTimeout(req.Context(), pingTimeout)
			defer cancel()
			if err := deps.Ping(ctx); err != nil {
				middleware.GetLogger(req.Context()).Warn("health check failed", "error", err)
				handler.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		handler.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Metrics != nil {
		r.Handle(http.MethodGet, "/metrics", deps.Metrics)
	}
}
