package model

// Category is one of the telemetry streams offered by the feed.
type Category string

const (
	CategoryGPS       Category = "gps"
	CategoryStatus    Category = "status"
	CategoryFault     Category = "fault"
	CategoryTrip      Category = "trip"
	CategoryException Category = "exception"
)

// Categories lists every category in fetch order.
var Categories = []Category{
	CategoryGPS,
	CategoryStatus,
	CategoryFault,
	CategoryTrip,
	CategoryException,
}

// Cursors holds one continuation token per category. A missing token lets the
// source pick its own starting point.
type Cursors map[Category]string

// Clone returns an independent copy.
func (c Cursors) Clone() Cursors {
	out := make(Cursors, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
