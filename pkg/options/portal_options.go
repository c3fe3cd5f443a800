package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*PortalOptions)(nil)

// DefaultTokenExpiration is the token lifetime requested when none is configured.
const DefaultTokenExpiration = 6 * time.Hour

// PortalOptions configure bearer-token authentication against the token portal.
type PortalOptions struct {
	// Enabled attaches a bearer token to every ingestion call.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// URL is the portal root, e.g. https://www.arcgis.com.
	URL string `json:"url" mapstructure:"url"`

	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`

	// Referer is sent with client=referer.
	Referer string `json:"referer" mapstructure:"referer"`

	// Expiration is the requested token lifetime.
	Expiration time.Duration `json:"expiration" mapstructure:"expiration"`

	// Timeout bounds a single generateToken request.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewPortalOptions creates PortalOptions with default values.
func NewPortalOptions() *PortalOptions {
	return &PortalOptions{
		URL:        "https://www.arcgis.com",
		Referer:    "http://localhost:8888",
		Expiration: DefaultTokenExpiration,
		Timeout:    30 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *PortalOptions) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if err := ValidateURL("portal.url", o.URL); err != nil {
		errs = append(errs, err)
	}
	if o.Username == "" || o.Password == "" {
		errs = append(errs, errors.New("portal.username and portal.password are required when authentication is enabled"))
	}
	if o.Expiration < time.Minute {
		errs = append(errs, errors.New("portal.expiration must be at least one minute"))
	}

	return errs
}

// AddFlags adds flags for PortalOptions to the specified FlagSet.
func (o *PortalOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, "portal.enabled", o.Enabled, "Authenticate ingestion calls with a bearer token from the portal.")
	fs.StringVar(&o.URL, "portal.url", o.URL, "Root URL of the token portal.")
	fs.StringVar(&o.Username, "portal.username", o.Username, "Username of the owner of the ingestion feed.")
	fs.StringVar(&o.Password, "portal.password", o.Password, "Password of the owner of the ingestion feed.")
	fs.StringVar(&o.Referer, "portal.referer", o.Referer, "Referer the token is bound to.")
	fs.DurationVar(&o.Expiration, "portal.expiration", o.Expiration, "Requested token lifetime.")
	fs.DurationVar(&o.Timeout, "portal.timeout", o.Timeout, "Timeout of a token request.")
}
