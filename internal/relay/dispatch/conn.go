package dispatch

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	feedv1 "github.com/autopeer-io/fleetrelay/api/feed/v1"
	"github.com/autopeer-io/fleetrelay/internal/pkg/metrics"
	grpcmiddleware "github.com/autopeer-io/fleetrelay/internal/pkg/middleware/grpc"
)

// ConnConfig describes the channel to the ingestion endpoint.
type ConnConfig struct {
	Target     string
	HeaderPath string
	Insecure   bool
	Timeout    time.Duration
	KeepAlive  time.Duration
}

// Conn owns the client connection and reports its connectivity.
type Conn struct {
	*grpc.ClientConn
}

// Dial creates a lazily connecting client. Every call and stream carries the
// routing header; unary calls without a deadline get cfg.Timeout.
func Dial(cfg ConnConfig, extra ...grpc.DialOption) (*Conn, error) {
	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if cfg.Insecure {
		creds = insecure.NewCredentials()
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithChainUnaryInterceptor(
			grpcmiddleware.UnaryMetadataInterceptor(feedv1.RoutingHeader, cfg.HeaderPath),
			grpcmiddleware.UnaryTimeoutInterceptor(cfg.Timeout),
		),
		grpc.WithChainStreamInterceptor(
			grpcmiddleware.StreamMetadataInterceptor(feedv1.RoutingHeader, cfg.HeaderPath),
		),
	}
	if cfg.KeepAlive > 0 {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepAlive,
			Timeout:             cfg.KeepAlive / 2,
			PermitWithoutStream: true,
		}))
	}
	opts = append(opts, extra...)

	cc, err := grpc.NewClient(cfg.Target, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gRPC client for %q: %w", cfg.Target, err)
	}
	return &Conn{ClientConn: cc}, nil
}

// Monitor publishes connectivity changes until ctx is done.
func (c *Conn) Monitor(ctx context.Context) error {
	logger := logr.FromContextOrDiscard(ctx).WithName("grpc-monitor")

	c.Connect()
	lastState := c.GetState()
	updateMetric(lastState)

	for {
		if !c.WaitForStateChange(ctx, lastState) {
			return nil
		}

		newState := c.GetState()
		logger.Info("Endpoint connection state changed", "from", lastState.String(), "to", newState.String())

		updateMetric(newState)
		lastState = newState
	}
}

func updateMetric(state connectivity.State) {
	if state == connectivity.Ready {
		metrics.EndpointConnectivityStatus.Set(1)
	} else {
		metrics.EndpointConnectivityStatus.Set(0)
	}
}
