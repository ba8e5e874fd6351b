package serve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	srv, err := NewServer(NewConfig(
		WithPort(0),
		WithGracefulShutdown(time.Second),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	))
	require.NoError(t, err)
	return srv
}

func healthClient(t *testing.T, srv *Server) grpc_health_v1.HealthClient {
	t.Helper()

	conn, err := grpc.NewClient(
		fmt.Sprintf("127.0.0.1:%d", srv.Port()),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return grpc_health_v1.NewHealthClient(conn)
}

func check(t *testing.T, client grpc_health_v1.HealthClient, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 50051, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.GracefulTimeout)
	assert.Empty(t, cfg.TLSCertFile)
	assert.Empty(t, cfg.TLSKeyFile)
	assert.Nil(t, cfg.Logger)
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(WithPort(9000), WithGracefulShutdown(5*time.Second), WithTLS("cert.pem", "key.pem"))

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.GracefulTimeout)
	assert.Equal(t, "cert.pem", cfg.TLSCertFile)
	assert.Equal(t, "key.pem", cfg.TLSKeyFile)
}

func TestNewServer(t *testing.T) {
	t.Run("port zero picks a free port", func(t *testing.T) {
		srv := testServer(t)
		defer srv.Stop()

		assert.NotNil(t, srv.GRPCServer())
		assert.NotNil(t, srv.HealthServer())
		assert.Greater(t, srv.Port(), 0)
	})

	t.Run("port in use", func(t *testing.T) {
		first := testServer(t)
		defer first.Stop()

		_, err := NewServer(&Config{Port: first.Port()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to listen")
	})

	t.Run("missing TLS files", func(t *testing.T) {
		_, err := NewServer(NewConfig(WithPort(0), WithTLS("/nonexistent/cert.pem", "/nonexistent/key.pem")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load TLS credentials")
	})
}

func TestServer_HealthStatus(t *testing.T) {
	srv := testServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	client := healthClient(t, srv)

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(t, client, ""))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceName))

	srv.SetServing()
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(t, client, ServiceName))

	srv.SetNotServing()
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceName))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestServer_GracefulStop(t *testing.T) {
	srv := testServer(t)

	go func() { _ = srv.Serve(context.Background()) }()
	client := healthClient(t, srv)
	srv.SetServing()
	require.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(t, client, ""))

	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("GracefulStop did not return")
	}
}
