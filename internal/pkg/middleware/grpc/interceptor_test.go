package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestUnaryTimeoutInterceptor(t *testing.T) {
	intercept := UnaryTimeoutInterceptor(2 * time.Second)

	var deadline time.Time
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		var ok bool
		deadline, ok = ctx.Deadline()
		require.True(t, ok)
		return nil
	}

	start := time.Now()
	require.NoError(t, intercept(context.Background(), "/svc/Send", nil, nil, nil, invoker))
	assert.WithinDuration(t, start.Add(2*time.Second), deadline, time.Second)

	// An existing deadline is kept.
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	want, _ := ctx.Deadline()
	require.NoError(t, intercept(ctx, "/svc/Send", nil, nil, nil, invoker))
	assert.Equal(t, want, deadline)
}

func TestUnaryMetadataInterceptor(t *testing.T) {
	intercept := UnaryMetadataInterceptor("grpc-path", "feed.abc")

	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, ok := metadata.FromOutgoingContext(ctx)
		require.True(t, ok)
		assert.Equal(t, []string{"feed.abc"}, md.Get("grpc-path"))
		assert.Equal(t, []string{"Bearer t"}, md.Get("authorization"))
		return nil
	}

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer t")
	require.NoError(t, intercept(ctx, "/svc/Send", nil, nil, nil, invoker))
}
