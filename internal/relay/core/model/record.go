package model

import "time"

// LogRecord is a single GPS fix.
type LogRecord struct {
	ID        string
	Device    Device
	DateTime  time.Time
	Longitude float64
	Latitude  float64

	// Speed is in km/h.
	Speed float64
}

// StatusData is an engine or diagnostic reading.
type StatusData struct {
	ID         string
	Device     Device
	DateTime   time.Time
	Diagnostic string
	Data       float64
}

// FaultData is a diagnostic trouble code raised by a device.
type FaultData struct {
	ID          string
	Device      Device
	DateTime    time.Time
	Diagnostic  string
	FailureMode string
	FaultState  string
}

// Trip is a completed drive between two stops.
type Trip struct {
	ID       string
	Device   Device
	Start    time.Time
	Stop     time.Time
	Distance float64
}

// ExceptionEvent is a rule violation detected by the feed.
type ExceptionEvent struct {
	ID         string
	Device     Device
	Rule       string
	ActiveFrom time.Time
	ActiveTo   time.Time
	Distance   float64
}

// Result is everything one fetch returned, in source order.
type Result struct {
	GPSRecords      []LogRecord
	StatusData      []StatusData
	FaultData       []FaultData
	Trips           []Trip
	ExceptionEvents []ExceptionEvent
}

// Len returns the total number of records across categories.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.GPSRecords) + len(r.StatusData) + len(r.FaultData) + len(r.Trips) + len(r.ExceptionEvents)
}
