package options

import (
	"github.com/spf13/pflag"
)

var _ IOptions = (*OutputOptions)(nil)

// OutputOptions configure the local copies of each fetched batch.
type OutputOptions struct {
	// Console prints fetched records as tables.
	Console bool `json:"console" mapstructure:"console"`

	// Path is the directory receiving per-category CSV files. Empty disables CSV.
	Path string `json:"path" mapstructure:"path"`
}

// NewOutputOptions creates OutputOptions with default values.
func NewOutputOptions() *OutputOptions {
	return &OutputOptions{}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *OutputOptions) Validate() []error {
	return nil
}

// AddFlags adds flags for OutputOptions to the specified FlagSet.
func (o *OutputOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Console, "output.console", o.Console, "Print fetched records to the console.")
	fs.StringVar(&o.Path, "output.path", o.Path, "Directory to append per-category CSV files to.")
}
