package utilities

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to the Pinger interface.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// RegisterHealthServer registers the gRPC health check service and returns it
// so callers can flip serving status as dependencies come and go.
func RegisterHealthServer(grpcServer *grpc.Server, services ...string) *health.Server {
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	for _, svc := range services {
		healthServer.SetServingStatus(svc, grpc_health_v1.HealthCheckResponse_SERVING)
	}
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	return healthServer
}

// WatchDependency pings dep every interval and mirrors the result into the
// health server for the given services until ctx is cancelled. onResult, when
// non-nil, is called after each probe.
func WatchDependency(
	ctx context.Context,
	logger *zerolog.Logger,
	healthServer *health.Server,
	dep Pinger,
	interval time.Duration,
	onResult func(err error),
	services ...string,
) {
	services = append([]string{""}, services...)

	probe := func() {
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		err := dep.Ping(pingCtx)
		cancel()

		status := grpc_health_v1.HealthCheckResponse_SERVING
		if err != nil {
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			logger.Warn().Err(err).Msg("dependency health check failed")
		}
		for _, svc := range services {
			healthServer.SetServingStatus(svc, status)
		}
		if onResult != nil {
			onResult(err)
		}
	}

	probe()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
