package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var (
	healthServer  string
	healthService string
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query the gRPC health status of a running layoutd",
	RunE:  runHealth,
}

func init() {
	healthCmd.Flags().StringVar(&healthServer, "server", "localhost:9090", "gRPC server address")
	healthCmd.Flags().StringVar(&healthService, "service", "layoutd.LayoutService", "service name to check (empty = overall)")
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	status, err := checkHealth(ctx, healthServer, healthService)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), status)
	if status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("service %q is %s", healthService, status)
	}
	return nil
}

func checkHealth(ctx context.Context, addr, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check: %w", err)
	}
	return resp.GetStatus(), nil
}
