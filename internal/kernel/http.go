// Package kernel assembles the HTTP handler: the global middleware stack,
// the metrics endpoint, then every application route.
package kernel

import (
	"time"

	"github.com/rrnagar/marketplace/app/routes"
	"github.com/rrnagar/marketplace/app/services"
	"github.com/rrnagar/marketplace/config"
	"github.com/rrnagar/marketplace/pkg/metrics"
	"github.com/rrnagar/marketplace/pkg/middleware"
	"github.com/rrnagar/marketplace/pkg/reqid"
	"github.com/rrnagar/marketplace/pkg/router"
	"github.com/rrnagar/marketplace/pkg/session"
)

// NewHTTP builds the router for svc.
func NewHTTP(svc *services.Services) (*router.Router, error) {
	r := router.New()

	// Outermost first: metrics see total latency, recovery wraps everything
	// that can panic, the request id exists before anything logs.
	r.Use(
		metrics.Middleware(),
		middleware.Recovery,
		reqid.Middleware(),
		middleware.Logger,
		session.Middleware(session.DefaultOptions()),
		middleware.CORS(middleware.DefaultCORSOptions()),
		middleware.RateLimit(config.Int("RATE_LIMIT_PER_MINUTE", 200), time.Minute),
	)

	r.HandleFunc("/metrics", metrics.Handler())

	if err := routes.Register(r, svc); err != nil {
		return nil, err
	}
	return r, nil
}
