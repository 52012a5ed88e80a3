package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"bookshelf.org/internal/obs"
)

// HealthServer publishes readiness over grpc.health.v1. The overall status
// ("") and the service entry move together.
type HealthServer struct {
	srv   *health.Server
	ready Readiness
}

func NewHealthServer(ready Readiness) *HealthServer {
	if ready == nil {
		ready = ReadyProbe{}
	}
	return &HealthServer{srv: health.NewServer(), ready: ready}
}

// Sync runs one readiness check and publishes the result.
func (h *HealthServer) Sync(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.ready.Check(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		obs.SetReady(false)
	} else {
		obs.SetReady(true)
	}
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(serviceName, status)
}

// Run syncs every interval until ctx is done, then marks everything as not
// serving so watchers see the shutdown.
func (h *HealthServer) Run(ctx context.Context, interval time.Duration) {
	h.Sync(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			h.Sync(ctx)
		}
	}
}

// NewGRPCServer returns a gRPC server exposing the health service.
func NewGRPCServer(h *HealthServer, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.srv)
	return s
}
