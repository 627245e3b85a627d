package main

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/serviceboard/libs/grpcx"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// probe asks the local gRPC health service whether service is serving. It
// backs the "healthcheck" subcommand used by container health checks.
func probe(ctx context.Context, addr, service string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 2 * time.Second})
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%s is %s", service, resp.GetStatus())
	}
	return nil
}
