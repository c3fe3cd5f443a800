package options

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*GrpcOptions)(nil)

const (
	// DeliveryModeStream keeps one client stream open for the process lifetime.
	DeliveryModeStream = "stream"

	// DeliveryModeUnary issues one call per batch.
	DeliveryModeUnary = "unary"
)

// GrpcOptions configure the connection to the ingestion endpoint.
type GrpcOptions struct {
	// Endpoint is the ingestion host, without scheme or port.
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`

	// Port is the ingestion port. Defaults to 443.
	Port int `json:"port" mapstructure:"port"`

	// HeaderPath routes calls to the target feed.
	HeaderPath string `json:"header-path" mapstructure:"header-path"`

	// Mode is either "stream" or "unary" and is fixed for the process lifetime.
	Mode string `json:"mode" mapstructure:"mode"`

	// Insecure disables TLS. Only for local endpoints.
	Insecure bool `json:"insecure" mapstructure:"insecure"`

	// Timeout bounds each unary call and the final stream close.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// KeepAlive is the interval of client keepalive pings. Zero disables them.
	KeepAlive time.Duration `json:"keep-alive" mapstructure:"keep-alive"`
}

// NewGrpcOptions creates GrpcOptions with default values.
func NewGrpcOptions() *GrpcOptions {
	return &GrpcOptions{
		Port:      443,
		Mode:      DeliveryModeStream,
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
}

// Target returns the dial target.
func (o *GrpcOptions) Target() string {
	return fmt.Sprintf("%s:%d", o.Endpoint, o.Port)
}

// Streaming reports whether the stream delivery mode is selected.
func (o *GrpcOptions) Streaming() bool {
	return o.Mode == DeliveryModeStream
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *GrpcOptions) Validate() []error {
	var errs []error

	if o.Endpoint == "" {
		errs = append(errs, errors.New("grpc.endpoint is required"))
	}
	if o.HeaderPath == "" {
		errs = append(errs, errors.New("grpc.header-path is required"))
	}
	if o.Port <= 0 || o.Port > 65535 {
		errs = append(errs, fmt.Errorf("grpc.port %d is out of range", o.Port))
	}
	if o.Mode != DeliveryModeStream && o.Mode != DeliveryModeUnary {
		errs = append(errs, fmt.Errorf("grpc.mode must be %q or %q, got %q", DeliveryModeStream, DeliveryModeUnary, o.Mode))
	}
	if o.Timeout <= 0 {
		errs = append(errs, errors.New("grpc.timeout must be positive"))
	}

	return errs
}

// AddFlags adds flags related to the ingestion endpoint to the specified FlagSet.
func (o *GrpcOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Endpoint, "grpc.endpoint", o.Endpoint, "Host of the gRPC ingestion endpoint.")
	fs.IntVar(&o.Port, "grpc.port", o.Port, "Port of the gRPC ingestion endpoint.")
	fs.StringVar(&o.HeaderPath, "grpc.header-path", o.HeaderPath, "Value of the grpc-path routing header identifying the target feed.")
	fs.StringVar(&o.Mode, "grpc.mode", o.Mode, "Delivery mode: 'stream' (one long-lived call) or 'unary' (one call per batch).")
	fs.BoolVar(&o.Insecure, "grpc.insecure", o.Insecure, "Dial the endpoint without TLS.")
	fs.DurationVar(&o.Timeout, "grpc.timeout", o.Timeout, "Timeout for unary calls and stream completion.")
	fs.DurationVar(&o.KeepAlive, "grpc.keep-alive", o.KeepAlive, "Keepalive ping interval, 0 disables pings.")
}
