// Package backend checks the internal backend service over gRPC.
package backend

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/vietddude/toolgate/internal/core/retry"
)

// OpHealthCheck labels backend health checks in logs and metrics.
const OpHealthCheck = "backend_health"

// Config holds the backend connection settings.
type Config struct {
	Target  string        `yaml:"target"`
	Service string        `yaml:"service"`
	Timeout time.Duration `yaml:"timeout"`
	Retry   retry.Policy  `yaml:"retry"`
}

// Client talks to the backend over a single gRPC connection.
type Client struct {
	target  string
	service string
	timeout time.Duration
	policy  retry.Policy
	conn    *grpc.ClientConn
	health  healthpb.HealthClient
	log     *slog.Logger
}

// NewClient creates the connection lazily; no I/O happens until the first call.
// Extra dial options are appended after the transport credentials.
func NewClient(cfg Config, extra ...grpc.DialOption) (*Client, error) {
	target := cfg.Target
	var opts []grpc.DialOption

	if strings.HasPrefix(target, "https://") || strings.HasSuffix(target, ":443") {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		target:  target,
		service: cfg.Service,
		timeout: timeout,
		policy:  cfg.Retry,
		conn:    conn,
		health:  healthpb.NewHealthClient(conn),
		log:     slog.Default().With("component", "backend", "target", target),
	}, nil
}

// Check asks the backend's grpc.health.v1 service whether it is serving.
// A reachable backend that reports NOT_SERVING is treated as unavailable.
func (c *Client) Check(ctx context.Context) error {
	_, err := retry.Do(ctx, c.policy, func(ctx context.Context) (struct{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.health.Check(callCtx, &healthpb.HealthCheckRequest{Service: c.service})
		if err != nil {
			return struct{}{}, err
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			return struct{}{}, status.Errorf(codes.Unavailable, "backend reports %s", resp.GetStatus())
		}
		return struct{}{}, nil
	}, retry.WithName(OpHealthCheck), retry.WithLogger(c.log))
	return err
}

// Target returns the dial target without scheme.
func (c *Client) Target() string {
	return c.target
}

// Conn returns the underlying gRPC connection.
func (c *Client) Conn() *grpc.ClientConn {
	return c.conn
}

// Close cleans up resources.
func (c *Client) Close() error {
	return c.conn.Close()
}
