package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cliflag "k8s.io/component-base/cli/flag"
)

type testOptions struct {
	Endpoint   string
	Interval   time.Duration
	Continuous bool
	Categories []string

	validateErr error
	completed   bool
}

func (o *testOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	fs := fss.FlagSet("test")
	fs.StringVar(&o.Endpoint, "grpc.endpoint", "", "endpoint")
	fs.DurationVar(&o.Interval, "poll.interval", time.Second, "interval")
	fs.BoolVar(&o.Continuous, "poll.continuous", true, "continuous")
	fs.StringSliceVar(&o.Categories, "feed.categories", []string{"gps"}, "categories")
	return fss
}

func (o *testOptions) Complete() error { o.completed = true; return nil }
func (o *testOptions) Validate() error { return o.validateErr }

func run(t *testing.T, opts *testOptions, args ...string) error {
	t.Helper()
	ran := false
	a := NewApp("test", "test app",
		WithOptions(opts),
		WithEnvPrefix("FLEETRELAYTEST"),
		WithDefaultValidArgs(),
		WithRunFunc(func() error { ran = true; return nil }),
	)
	if args == nil {
		args = []string{}
	}
	a.Command().SetArgs(args)
	err := a.Command().Execute()
	if err == nil {
		assert.True(t, ran)
	}
	return err
}

func TestFlagsOverrideEnvAndFile(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
grpc:
  endpoint: from-file
poll:
  interval: 3s
  continuous: false
feed:
  categories: [gps, status]
`), 0o600))
	t.Setenv("FLEETRELAYTEST_POLL_INTERVAL", "7s")

	opts := &testOptions{}
	require.NoError(t, run(t, opts, "--config", cfg, "--grpc.endpoint", "from-flag"))

	assert.Equal(t, "from-flag", opts.Endpoint)
	assert.Equal(t, 7*time.Second, opts.Interval)
	assert.False(t, opts.Continuous)
	assert.Equal(t, []string{"gps", "status"}, opts.Categories)
	assert.True(t, opts.completed)
}

func TestDefaultsWithoutConfig(t *testing.T) {
	opts := &testOptions{}
	require.NoError(t, run(t, opts))
	assert.Equal(t, time.Second, opts.Interval)
	assert.True(t, opts.Continuous)
	assert.Equal(t, []string{"gps"}, opts.Categories)
}

func TestValidationFailure(t *testing.T) {
	opts := &testOptions{validateErr: errors.New("grpc.endpoint is required")}
	assert.EqualError(t, run(t, opts), "grpc.endpoint is required")
}

func TestRejectsPositionalArgs(t *testing.T) {
	assert.Error(t, run(t, &testOptions{}, "extra"))
}

func TestMissingConfigFile(t *testing.T) {
	err := run(t, &testOptions{}, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}
