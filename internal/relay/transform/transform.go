// Package transform maps telemetry records onto the ingestion wire schema.
package transform

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	feedv1 "github.com/autopeer-io/fleetrelay/api/feed/v1"
	"github.com/autopeer-io/fleetrelay/internal/relay/core/model"
)

// AttributeCount is the number of attributes in every feature.
const AttributeCount = 9

// ErrInvalidRecord marks a record the feed should never have produced.
var ErrInvalidRecord = errors.New("invalid telemetry record")

// ToFeature converts a GPS record into its wire feature. Attribute order:
// name, serial number, VIN, license plate, license state, time (epoch millis),
// longitude, latitude, speed.
func ToFeature(r model.LogRecord) feedv1.Feature {
	return feedv1.Feature{
		pack(wrapperspb.String(r.Device.Name())),
		pack(wrapperspb.String(r.Device.SerialNumber)),
		pack(wrapperspb.String(r.Device.VIN())),
		pack(wrapperspb.String(r.Device.LicensePlate())),
		pack(wrapperspb.String(r.Device.LicenseState())),
		pack(wrapperspb.Int64(r.DateTime.UTC().UnixMilli())),
		pack(wrapperspb.Double(r.Longitude)),
		pack(wrapperspb.Double(r.Latitude)),
		pack(wrapperspb.Int32(speed(r.Speed))),
	}
}

// ToBatch validates and converts records, preserving order. The first invalid
// record aborts the whole batch.
func ToBatch(records []model.LogRecord) (feedv1.Batch, error) {
	batch := make(feedv1.Batch, 0, len(records))
	for i, r := range records {
		if err := Validate(r); err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, r.ID, err)
		}
		batch = append(batch, ToFeature(r))
	}
	return batch, nil
}

// Validate reports whether r can be represented on the wire.
func Validate(r model.LogRecord) error {
	switch {
	case r.Device.SerialNumber == "":
		return fmt.Errorf("%w: missing device serial number", ErrInvalidRecord)
	case r.DateTime.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrInvalidRecord)
	case !finite(r.Longitude) || r.Longitude < -180 || r.Longitude > 180:
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidRecord, r.Longitude)
	case !finite(r.Latitude) || r.Latitude < -90 || r.Latitude > 90:
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidRecord, r.Latitude)
	case !finite(r.Speed):
		return fmt.Errorf("%w: speed %v is not a number", ErrInvalidRecord, r.Speed)
	}
	return nil
}

// speed truncates toward zero and saturates at the int32 bounds.
func speed(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func pack(m proto.Message) *anypb.Any {
	a, err := anypb.New(m)
	if err != nil {
		// Well-known wrapper values always marshal.
		panic(fmt.Sprintf("pack %T: %v", m, err))
	}
	return a
}
