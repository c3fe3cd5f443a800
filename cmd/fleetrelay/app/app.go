package app

import (
	"fmt"

	"google.golang.org/grpc/grpclog"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/fleetrelay/cmd/fleetrelay/app/options"
	"github.com/autopeer-io/fleetrelay/pkg/app"
	"github.com/autopeer-io/fleetrelay/pkg/log"
)

const (
	commandName = "fleetrelay"
	envPrefix   = "FLEETRELAY"
	commandDesc = `fleetrelay polls a fleet-tracking feed at a fixed cadence and relays
GPS fixes to a streaming ingestion endpoint over gRPC, either on one
long-lived client stream or with one call per batch. When a token portal
is configured every call carries a bearer token that is refreshed when it
expires.

Every flag can also be set in the YAML file given with --config, or with an
environment variable such as FLEETRELAY_GRPC_ENDPOINT.`
)

func NewApp() *app.App {
	opts := options.NewRelayOptions()
	application := app.NewApp(
		commandName,
		"Relay fleet telemetry to a gRPC ingestion endpoint",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithEnvPrefix(envPrefix),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.RelayOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)
		defer func() { _ = log.Sync() }()
		grpclog.SetLoggerV2(log.Std().GRPC())

		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		relay, err := cfg.NewRelay()
		if err != nil {
			return fmt.Errorf("failed to create relay: %w", err)
		}

		return relay.Run(ctx)
	}
}
