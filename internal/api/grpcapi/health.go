// Package grpcapi exposes the device over gRPC. Only the standard health
// service is served: SERVING while a controller holds an AR.
package grpcapi

import (
	"context"

	"github.com/KevinKickass/OpenProfinetDevice/internal/logging"
	"github.com/KevinKickass/OpenProfinetDevice/internal/profinet"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name checked by orchestrators.
const ServiceName = "profinet.device"

type HealthService struct {
	server *health.Server
	logger logging.Logger
}

func NewHealthService(logger logging.Logger) *HealthService {
	h := &HealthService{server: health.NewServer(), logger: logger}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Register adds the health and reflection services to s.
func (h *HealthService) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
	reflection.Register(s)
}

// Update maps the device state to a serving status.
func (h *HealthService) Update(state profinet.State) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if state == profinet.StateConnected {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.set(status)
	h.logger.Debug("Health status updated",
		zap.String("device_state", string(state)),
		zap.Stringer("status", status))
}

// Watch follows state changes until ctx is done or events is closed.
func (h *HealthService) Watch(ctx context.Context, events <-chan profinet.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-events:
			if !ok {
				return
			}
			if n.Type == profinet.NotificationStateChanged {
				h.Update(n.State)
			}
		}
	}
}

// Shutdown reports NOT_SERVING to all watchers and ignores later updates.
func (h *HealthService) Shutdown() {
	h.server.Shutdown()
}

func (h *HealthService) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
}
