// Package healthcheck exposes the standard grpc.health.v1 service, driven by
// periodic pings of the backing stores.
package healthcheck

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"scamshield/pkg/logger"
)

// ServiceName is the service reported alongside the overall ("") status
const ServiceName = "scamshield.v1.ScanService"

// DefaultInterval is how often dependencies are pinged
const DefaultInterval = 10 * time.Second

// Pinger is satisfied by the Postgres and Redis clients
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker keeps the gRPC health status in sync with its dependencies
type Checker struct {
	server   *health.Server
	deps     map[string]Pinger
	interval time.Duration
	logger   *logger.Logger
}

// NewChecker creates a checker. Nil dependencies are skipped so callers can
// pass optional stores directly.
func NewChecker(deps map[string]Pinger, interval time.Duration, log *logger.Logger) *Checker {
	if interval <= 0 {
		interval = DefaultInterval
	}

	live := make(map[string]Pinger, len(deps))
	for name, p := range deps {
		if p != nil {
			live[name] = p
		}
	}

	c := &Checker{
		server:   health.NewServer(),
		deps:     live,
		interval: interval,
		logger:   log.WithComponent("grpc-health"),
	}
	c.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	return c
}

// Register registers the health service on a gRPC server
func (c *Checker) Register(grpcServer *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(grpcServer, c.server)
}

// Server returns the underlying health server
func (c *Checker) Server() *health.Server {
	return c.server
}

// Check pings every dependency once and updates the serving status
func (c *Checker) Check(ctx context.Context) bool {
	healthy := true
	for name, dep := range c.deps {
		pingCtx, cancel := context.WithTimeout(ctx, c.interval/2)
		err := dep.Ping(pingCtx)
		cancel()
		if err != nil {
			healthy = false
			c.logger.Warn().Err(err).Str("dependency", name).Msg("health check failed")
		}
	}

	if healthy {
		c.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	} else {
		c.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
	return healthy
}

// Run checks dependencies every interval until ctx is cancelled, then
// reports NOT_SERVING for the remaining shutdown window
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			c.server.Shutdown()
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

func (c *Checker) setStatus(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	c.server.SetServingStatus("", status)
	c.server.SetServingStatus(ServiceName, status)
}
