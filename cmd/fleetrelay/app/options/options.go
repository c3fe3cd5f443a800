package options

import (
	"errors"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/fleetrelay/internal/relay"
	"github.com/autopeer-io/fleetrelay/pkg/app"
	"github.com/autopeer-io/fleetrelay/pkg/log"
	"github.com/autopeer-io/fleetrelay/pkg/options"
)

type RelayOptions struct {
	FeedOptions   *options.FeedOptions   `json:"feed" mapstructure:"feed"`
	GrpcOptions   *options.GrpcOptions   `json:"grpc" mapstructure:"grpc"`
	PortalOptions *options.PortalOptions `json:"portal" mapstructure:"portal"`
	PollOptions   *options.PollOptions   `json:"poll" mapstructure:"poll"`
	OutputOptions *options.OutputOptions `json:"output" mapstructure:"output"`
	HttpOptions   *options.HttpOptions   `json:"http" mapstructure:"http"`
	MqttOptions   *options.MqttOptions   `json:"mqtt" mapstructure:"mqtt"`
	S3Options     *options.S3Options     `json:"s3" mapstructure:"s3"`
	Log           *log.Options           `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*RelayOptions)(nil)

func NewRelayOptions() *RelayOptions {
	o := &RelayOptions{
		FeedOptions:   options.NewFeedOptions(),
		GrpcOptions:   options.NewGrpcOptions(),
		PortalOptions: options.NewPortalOptions(),
		PollOptions:   options.NewPollOptions(),
		OutputOptions: options.NewOutputOptions(),
		HttpOptions:   options.NewHttpOptions(),
		MqttOptions:   options.NewMqttOptions(),
		S3Options:     options.NewS3Options(),
		Log:           log.NewOptions(),
	}

	return o
}

func (o *RelayOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.FeedOptions.AddFlags(fss.FlagSet("feed"))
	o.GrpcOptions.AddFlags(fss.FlagSet("grpc"))
	o.PortalOptions.AddFlags(fss.FlagSet("portal"))
	o.PollOptions.AddFlags(fss.FlagSet("poll"))
	o.OutputOptions.AddFlags(fss.FlagSet("output"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *RelayOptions) Complete() error {
	if o.PortalOptions.Expiration <= 0 {
		o.PortalOptions.Expiration = options.DefaultTokenExpiration
	}
	return nil
}

func (o *RelayOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.FeedOptions.Validate()...)
	errs = append(errs, o.GrpcOptions.Validate()...)
	errs = append(errs, o.PortalOptions.Validate()...)
	errs = append(errs, o.PollOptions.Validate()...)
	errs = append(errs, o.OutputOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	if o.FeedOptions.Source == options.FeedSourceMQTT {
		errs = append(errs, o.MqttOptions.Validate()...)
	}
	errs = append(errs, o.S3Options.Validate()...)
	if o.S3Options.Enabled && o.OutputOptions.Path == "" {
		errs = append(errs, errors.New("s3.enabled requires output.path"))
	}
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *RelayOptions) Config() (*relay.Config, error) {
	return &relay.Config{
		FeedOptions:   o.FeedOptions,
		GrpcOptions:   o.GrpcOptions,
		PortalOptions: o.PortalOptions,
		PollOptions:   o.PollOptions,
		OutputOptions: o.OutputOptions,
		HttpOptions:   o.HttpOptions,
		MqttOptions:   o.MqttOptions,
		S3Options:     o.S3Options,
	}, nil
}
