package grpcapi

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/KevinKickass/OpenProfinetDevice/internal/profinet"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
)

func startServer(t *testing.T) (*HealthService, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 16)
	srv := grpc.NewServer()
	h := NewHealthService(zap.NewNop())
	h.Register(srv)
	go srv.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
	})
	return h, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealthFollowsDeviceState(t *testing.T) {
	h, client := startServer(t)

	if got := check(t, client, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("initial = %s", got)
	}

	h.Update(profinet.StateConnected)
	for _, service := range []string{"", ServiceName} {
		if got := check(t, client, service); got != healthpb.HealthCheckResponse_SERVING {
			t.Fatalf("%q connected = %s", service, got)
		}
	}

	h.Update(profinet.StateWaitingForConnection)
	if got := check(t, client, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("after abort = %s", got)
	}
}

func TestWatchNotifications(t *testing.T) {
	h, client := startServer(t)

	events := make(chan profinet.Notification, 3)
	events <- profinet.Notification{Type: profinet.NotificationAlarm}
	events <- profinet.Notification{Type: profinet.NotificationStateChanged, State: profinet.StateConnected}
	close(events)
	h.Watch(context.Background(), events)

	if got := check(t, client, ServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %s", got)
	}
}

func TestShutdownStopsServing(t *testing.T) {
	h, client := startServer(t)
	h.Update(profinet.StateConnected)
	h.Shutdown()
	h.Update(profinet.StateConnected)

	if got := check(t, client, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %s", got)
	}
}

func TestHealthWatchStream(t *testing.T) {
	h, client := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stream, err := client.Watch(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	first, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if want := (&healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}); !proto.Equal(first, want) {
		t.Fatalf("first = %v, want %v", first, want)
	}

	h.Update(profinet.StateConnected)
	next, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if want := (&healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}); !proto.Equal(next, want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}
