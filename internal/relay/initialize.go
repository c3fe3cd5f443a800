package relay

import (
	"fmt"
	"os"

	"github.com/autopeer-io/fleetrelay/internal/relay/core/model"
	"github.com/autopeer-io/fleetrelay/internal/relay/feed"
	"github.com/autopeer-io/fleetrelay/internal/relay/output"
	"github.com/autopeer-io/fleetrelay/internal/relay/storage"
	"github.com/autopeer-io/fleetrelay/internal/relay/token"
	"github.com/autopeer-io/fleetrelay/pkg/log"
	"github.com/autopeer-io/fleetrelay/pkg/mqtt"
	"github.com/autopeer-io/fleetrelay/pkg/options"
)

func InitializeFeedSource(opts *options.FeedOptions, mqttOpts *options.MqttOptions) (feed.Source, error) {
	categories := make([]model.Category, 0, len(opts.Categories))
	for _, c := range opts.Categories {
		categories = append(categories, model.Category(c))
	}

	switch opts.Source {
	case options.FeedSourceGeotab:
		return feed.NewGeotabClient(feed.GeotabConfig{
			Server:       opts.Server,
			Database:     opts.Database,
			Username:     opts.Username,
			Password:     opts.Password,
			Categories:   categories,
			ResultsLimit: opts.ResultsLimit,
			Timeout:      opts.Timeout,
		}, log.WithName("geotab")), nil
	case options.FeedSourceSynthetic:
		return feed.NewSyntheticSource(opts.SyntheticDevices, categories, nil), nil
	case options.FeedSourceMQTT:
		client, err := InitializeMQTTClient(mqttOpts)
		if err != nil {
			return nil, err
		}
		return feed.NewMQTTSource(client, mqttOpts.Topic, mqttOpts.BufferSize, log.WithName("mqtt-feed")), nil
	}
	return nil, fmt.Errorf("unknown feed source %q", opts.Source)
}

func InitializeMQTTClient(opts *options.MqttOptions) (mqtt.Client, error) {
	cfg := opts.ToClientConfig()

	if cfg.ClientID == "" {
		hostname, _ := os.Hostname()
		cfg.ClientID = fmt.Sprintf("fleetrelay-%s", hostname)
	}

	mqttclient, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "failed to new mqtt client")
		return nil, err
	}

	return mqttclient, nil
}

// InitializeTokenSource returns nil when authentication is disabled.
func InitializeTokenSource(opts *options.PortalOptions) token.Source {
	if !opts.Enabled {
		return nil
	}
	portal := token.NewPortalClient(token.PortalConfig{
		URL:        opts.URL,
		Username:   opts.Username,
		Password:   opts.Password,
		Referer:    opts.Referer,
		Expiration: opts.Expiration,
		Timeout:    opts.Timeout,
	})
	return token.NewManager(portal, nil, log.WithName("token"))
}

// InitializeOutputs builds the local writers. The returned provider is non-nil
// when CSV files are archived to a bucket.
func InitializeOutputs(opts *options.OutputOptions, s3Opts *options.S3Options) (output.Writer, storage.Provider, error) {
	var (
		writers  output.Multi
		provider storage.Provider
	)

	if opts.Console {
		writers = append(writers, output.NewConsole(os.Stdout))
	}

	if opts.Path != "" {
		csv, err := output.NewCSV(opts.Path)
		if err != nil {
			return nil, nil, err
		}
		if s3Opts != nil && s3Opts.Enabled {
			provider, err = storage.NewMinIOProvider(s3Opts)
			if err != nil {
				return nil, nil, err
			}
			writers = append(writers, output.NewArchive(csv, provider, s3Opts.Prefix))
		} else {
			writers = append(writers, csv)
		}
	}

	if len(writers) == 0 {
		return nil, nil, nil
	}
	return writers, provider, nil
}
