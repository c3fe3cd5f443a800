package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/fleetrelay/pkg/options"
)

func validOptions() *RelayOptions {
	o := NewRelayOptions()
	o.FeedOptions.Source = options.FeedSourceSynthetic
	o.GrpcOptions.Endpoint = "ingest.example.com"
	o.GrpcOptions.HeaderPath = "feed-1234"
	return o
}

func TestDefaultsNeedEndpoint(t *testing.T) {
	err := NewRelayOptions().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grpc.endpoint")
	assert.Contains(t, err.Error(), "feed.server")

	o := validOptions()
	require.NoError(t, o.Complete())
	assert.NoError(t, o.Validate())
}

func TestFlagSections(t *testing.T) {
	fss := NewRelayOptions().Flags()
	for _, name := range []string{"feed", "grpc", "portal", "poll", "output", "http", "mqtt", "s3", "log"} {
		fs, ok := fss.FlagSets[name]
		require.True(t, ok, name)
		assert.True(t, fs.HasFlags(), name)
	}

	require.NoError(t, fss.FlagSet("grpc").Parse([]string{"--grpc.mode=unary"}))
}

func TestCompleteRestoresExpiration(t *testing.T) {
	o := NewRelayOptions()
	o.PortalOptions.Expiration = 0
	require.NoError(t, o.Complete())
	assert.Equal(t, options.DefaultTokenExpiration, o.PortalOptions.Expiration)
}

func TestValidateAggregatesErrors(t *testing.T) {
	o := validOptions()
	o.PollOptions.Interval = 0
	o.PortalOptions.Enabled = true
	o.PortalOptions.Username = ""
	o.S3Options.Enabled = true
	o.S3Options.Endpoint = "localhost:9000"
	o.Log.Level = "loud"

	err := o.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "poll.interval")
	assert.Contains(t, msg, "portal.username")
	assert.Contains(t, msg, "output.path")
	assert.Contains(t, msg, "loud")
}

func TestMQTTOptionsOnlyCheckedForMQTTSource(t *testing.T) {
	o := validOptions()
	o.MqttOptions.Topic = ""
	assert.NoError(t, o.Validate())

	o.FeedOptions.Source = options.FeedSourceMQTT
	assert.Error(t, o.Validate())
}

func TestConfig(t *testing.T) {
	o := NewRelayOptions()
	o.PollOptions.Interval = 5 * time.Second

	cfg, err := o.Config()
	require.NoError(t, err)
	assert.Same(t, o.PollOptions, cfg.PollOptions)
	assert.Same(t, o.GrpcOptions, cfg.GrpcOptions)
	assert.Same(t, o.S3Options, cfg.S3Options)
}
