package options

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*FeedOptions)(nil)

const (
	FeedSourceGeotab    = "geotab"
	FeedSourceMQTT      = "mqtt"
	FeedSourceSynthetic = "synthetic"
)

// Categories understood by --feed.categories.
var feedCategories = []string{"gps", "status", "fault", "trip", "exception"}

// FeedOptions configure the upstream telemetry feed.
type FeedOptions struct {
	// Source selects the feed implementation: geotab, mqtt or synthetic.
	Source string `json:"source" mapstructure:"source"`

	Server   string `json:"server" mapstructure:"server"`
	Database string `json:"database" mapstructure:"database"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`

	// Categories lists the telemetry categories fetched each cycle.
	Categories []string `json:"categories" mapstructure:"categories"`

	// ResultsLimit caps the records returned per category per cycle.
	ResultsLimit int `json:"results-limit" mapstructure:"results-limit"`

	// Timeout bounds a single feed API request.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// SyntheticDevices is the fleet size of the synthetic source.
	SyntheticDevices int `json:"synthetic-devices" mapstructure:"synthetic-devices"`
}

// NewFeedOptions creates FeedOptions with default values.
func NewFeedOptions() *FeedOptions {
	return &FeedOptions{
		Source:           FeedSourceGeotab,
		Server:           "my.geotab.com",
		Categories:       []string{"gps"},
		ResultsLimit:     50000,
		Timeout:          60 * time.Second,
		SyntheticDevices: 3,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *FeedOptions) Validate() []error {
	var errs []error

	switch o.Source {
	case FeedSourceGeotab:
		if o.Server == "" || o.Database == "" || o.Username == "" || o.Password == "" {
			errs = append(errs, errors.New("feed.server, feed.database, feed.username and feed.password are required for the geotab source"))
		}
	case FeedSourceMQTT, FeedSourceSynthetic:
	default:
		errs = append(errs, fmt.Errorf("unknown feed.source %q", o.Source))
	}

	for _, c := range o.Categories {
		if !slices.Contains(feedCategories, c) {
			errs = append(errs, fmt.Errorf("unknown feed category %q", c))
		}
	}
	if o.ResultsLimit <= 0 {
		errs = append(errs, errors.New("feed.results-limit must be positive"))
	}

	return errs
}

// AddFlags adds flags for FeedOptions to the specified FlagSet.
func (o *FeedOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Source, "feed.source", o.Source, "Telemetry source: 'geotab', 'mqtt' or 'synthetic'.")
	fs.StringVar(&o.Server, "feed.server", o.Server, "Geotab server host.")
	fs.StringVar(&o.Database, "feed.database", o.Database, "Geotab database name.")
	fs.StringVar(&o.Username, "feed.username", o.Username, "Geotab username.")
	fs.StringVar(&o.Password, "feed.password", o.Password, "Geotab password.")
	fs.StringSliceVar(&o.Categories, "feed.categories", o.Categories, "Telemetry categories to fetch (gps, status, fault, trip, exception).")
	fs.IntVar(&o.ResultsLimit, "feed.results-limit", o.ResultsLimit, "Maximum records per category per cycle.")
	fs.DurationVar(&o.Timeout, "feed.timeout", o.Timeout, "Timeout of a feed API request.")
	fs.IntVar(&o.SyntheticDevices, "feed.synthetic-devices", o.SyntheticDevices, "Number of devices simulated by the synthetic source.")
}
