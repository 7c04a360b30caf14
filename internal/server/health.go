package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall "" status.
const ServiceName = "bloodwork.v1.Reports"

// HealthServer serves grpc.health.v1 for orchestrators and tracks database reachability.
type HealthServer struct {
	GRPC     *grpc.Server
	health   *health.Server
	db       Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewHealthServer(db Pinger, interval time.Duration, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	// reflection for grpcurl
	reflection.Register(gs)
	return &HealthServer{GRPC: gs, health: hs, db: db, interval: interval, timeout: 2 * time.Second, logger: logger}
}

// Check pings the database once and publishes the result.
func (h *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.db.HealthCheck(ctx, h.timeout, h.logger); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	return status
}

// Watch re-checks the database every interval until ctx ends, then marks the
// server as shutting down so in-flight health watchers see NOT_SERVING.
func (h *HealthServer) Watch(ctx context.Context) {
	last := h.Check(ctx)
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			return
		case <-t.C:
			if s := h.Check(ctx); s != last {
				h.logger.Warn("health.status_changed", "from", last.String(), "to", s.String())
				last = s
			}
		}
	}
}
