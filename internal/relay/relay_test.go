package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	clocktesting "k8s.io/utils/clock/testing"

	feedv1 "github.com/autopeer-io/fleetrelay/api/feed/v1"
	"github.com/autopeer-io/fleetrelay/internal/relay/core/model"
	"github.com/autopeer-io/fleetrelay/internal/relay/dispatch"
	"github.com/autopeer-io/fleetrelay/internal/relay/feed"
	"github.com/autopeer-io/fleetrelay/internal/relay/poller"
	"github.com/autopeer-io/fleetrelay/pkg/options"
)

type countingServer struct {
	mu       sync.Mutex
	features []int
}

func (s *countingServer) handle(_ any, stream grpc.ServerStream) error {
	for {
		req := feedv1.NewRequest()
		if err := stream.RecvMsg(req); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return err
		}
		f, err := feedv1.Features(req)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.features = append(s.features, len(f))
		s.mu.Unlock()
	}
	resp := feedv1.NewResponse()
	feedv1.SetResponse(resp, "done", 200)
	return stream.SendMsg(resp)
}

func TestRelayRunOnce(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	ingest := &countingServer{}
	srv := grpc.NewServer(grpc.UnknownServiceHandler(ingest.handle))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := dispatch.Dial(dispatch.ConnConfig{
		Target:     "passthrough:///bufnet",
		HeaderPath: "feed.test",
		Insecure:   true,
		Timeout:    5 * time.Second,
	}, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)

	dispatcher := dispatch.New(conn, dispatch.Config{Mode: dispatch.ModeStream})
	source := feed.NewSyntheticSource(3, []model.Category{model.CategoryGPS}, clocktesting.NewFakePassiveClock(time.Now()))
	pipeline := NewPipeline(source, nil, dispatcher, nil)

	r := &Relay{
		loop:       poller.NewLoop(pipeline, time.Second, nil, nil),
		continuous: false,
		dispatcher: dispatcher,
		conn:       conn,
		logger:     pipeline.logger,
	}

	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, dispatch.StateClosed, dispatcher.State())
	ingest.mu.Lock()
	defer ingest.mu.Unlock()
	assert.Equal(t, []int{3}, ingest.features)
	assert.Equal(t, "1", pipeline.Cursors()[model.CategoryGPS])
}

func TestInitializeOutputs(t *testing.T) {
	w, p, err := InitializeOutputs(options.NewOutputOptions(), options.NewS3Options())
	require.NoError(t, err)
	assert.Nil(t, w)
	assert.Nil(t, p)

	opts := options.NewOutputOptions()
	opts.Console = true
	opts.Path = t.TempDir()
	w, p, err = InitializeOutputs(opts, options.NewS3Options())
	require.NoError(t, err)
	assert.NotNil(t, w)
	assert.Nil(t, p)
}

func TestInitializeFeedSource(t *testing.T) {
	opts := options.NewFeedOptions()
	opts.Source = options.FeedSourceSynthetic
	src, err := InitializeFeedSource(opts, options.NewMqttOptions())
	require.NoError(t, err)
	assert.IsType(t, &feed.SyntheticSource{}, src)

	opts.Source = "carrier-pigeon"
	_, err = InitializeFeedSource(opts, options.NewMqttOptions())
	assert.Error(t, err)
}

func TestInitializeTokenSource(t *testing.T) {
	opts := options.NewPortalOptions()
	assert.Nil(t, InitializeTokenSource(opts))

	opts.Enabled = true
	assert.NotNil(t, InitializeTokenSource(opts))
}
