package grpcx

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func startBufServer(t *testing.T) (*Server, healthpb.HealthClient) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewServer("bufnet")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return srv, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, mdRequestID, "test-req")

	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealth_StartsNotServing(t *testing.T) {
	_, c := startBufServer(t)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, c, ServiceName))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, c, ""))
}

func TestHealth_FollowsHubLifecycle(t *testing.T) {
	srv, c := startBufServer(t)

	hubStarted := make(chan struct{})
	hubDone := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		srv.Watch(context.Background(), hubStarted, hubDone)
		close(watched)
	}()

	require.Never(t, func() bool {
		return check(t, c, ServiceName) == healthpb.HealthCheckResponse_SERVING
	}, 200*time.Millisecond, 20*time.Millisecond, "serving before the hub loop started")

	close(hubStarted)
	require.Eventually(t, func() bool {
		return check(t, c, ServiceName) == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 10*time.Millisecond)

	close(hubDone)
	<-watched
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, c, ServiceName))
}

func TestHealth_HubThatNeverStarts(t *testing.T) {
	srv, c := startBufServer(t)

	hubDone := make(chan struct{})
	close(hubDone)
	srv.Watch(context.Background(), make(chan struct{}), hubDone)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, c, ServiceName))
}

func TestHealth_UnknownService(t *testing.T) {
	_, c := startBufServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: "nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestUnaryInterceptor_RecoversPanic(t *testing.T) {
	icpt := UnaryServerInterceptor()
	_, err := icpt(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/test/Panic"},
		func(context.Context, any) (any, error) { panic("boom") })
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestUnaryInterceptor_AddsDeadline(t *testing.T) {
	icpt := UnaryServerInterceptor()
	_, err := icpt(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/test/Deadline"},
		func(ctx context.Context, _ any) (any, error) {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return nil, nil
		})
	assert.NoError(t, err)
}
