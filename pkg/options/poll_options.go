package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*PollOptions)(nil)

// PollOptions configure the polling cadence.
type PollOptions struct {
	// Interval is the target period of one fetch-transform-dispatch cycle.
	Interval time.Duration `json:"interval" mapstructure:"interval"`

	// Continuous keeps polling until stopped. When false exactly one cycle runs.
	Continuous bool `json:"continuous" mapstructure:"continuous"`
}

// NewPollOptions creates PollOptions with default values.
func NewPollOptions() *PollOptions {
	return &PollOptions{
		Interval:   5 * time.Second,
		Continuous: true,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *PollOptions) Validate() []error {
	if o.Interval <= 0 {
		return []error{errors.New("poll.interval must be positive")}
	}
	return nil
}

// AddFlags adds flags for PollOptions to the specified FlagSet.
func (o *PollOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.Interval, "poll.interval", o.Interval, "Target period of one poll cycle.")
	fs.BoolVar(&o.Continuous, "poll.continuous", o.Continuous, "Poll until stopped. Set to false to run a single cycle.")
}
