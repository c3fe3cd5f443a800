package relay

import (
	"fmt"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/fleetrelay/internal/relay/dispatch"
	"github.com/autopeer-io/fleetrelay/internal/relay/poller"
	httpserver "github.com/autopeer-io/fleetrelay/internal/relay/server/http"
	"github.com/autopeer-io/fleetrelay/pkg/log"
	"github.com/autopeer-io/fleetrelay/pkg/options"
)

// Config is the immutable configuration of a Relay.
type Config struct {
	FeedOptions   *options.FeedOptions
	GrpcOptions   *options.GrpcOptions
	PortalOptions *options.PortalOptions
	PollOptions   *options.PollOptions
	OutputOptions *options.OutputOptions
	HttpOptions   *options.HttpOptions
	MqttOptions   *options.MqttOptions
	S3Options     *options.S3Options
}

func (cfg *Config) NewRelay() (*Relay, error) {
	logger := log.WithName("relay")

	source, err := InitializeFeedSource(cfg.FeedOptions, cfg.MqttOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to init feed source: %w", err)
	}

	writer, bucket, err := InitializeOutputs(cfg.OutputOptions, cfg.S3Options)
	if err != nil {
		return nil, fmt.Errorf("failed to init outputs: %w", err)
	}

	conn, err := dispatch.Dial(dispatch.ConnConfig{
		Target:     cfg.GrpcOptions.Target(),
		HeaderPath: cfg.GrpcOptions.HeaderPath,
		Insecure:   cfg.GrpcOptions.Insecure,
		Timeout:    cfg.GrpcOptions.Timeout,
		KeepAlive:  cfg.GrpcOptions.KeepAlive,
	})
	if err != nil {
		return nil, err
	}

	dispatcher := dispatch.New(conn, dispatch.Config{
		Mode:         dispatch.Mode(cfg.GrpcOptions.Mode),
		Tokens:       InitializeTokenSource(cfg.PortalOptions),
		CloseTimeout: cfg.GrpcOptions.Timeout,
		Reporter: &dispatch.LogReporter{
			Logger: log.WithName("dispatch"),
			Target: cfg.GrpcOptions.Target(),
			Path:   cfg.GrpcOptions.HeaderPath,
		},
	})

	pipeline := NewPipeline(source, writer, dispatcher, logger)
	loop := poller.NewLoop(pipeline, cfg.PollOptions.Interval, clock.RealClock{}, log.WithName("poller"))

	r := &Relay{
		loop:       loop,
		continuous: cfg.PollOptions.Continuous,
		dispatcher: dispatcher,
		conn:       conn,
		bucket:     bucket,
		logger:     logger,
	}
	if s, ok := source.(starter); ok {
		r.starter = s
	}
	if cfg.HttpOptions.Enabled {
		r.httpServer = httpserver.NewServer(cfg.HttpOptions, dispatcher.Ready)
	}
	return r, nil
}
