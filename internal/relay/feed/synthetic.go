package feed

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/fleetrelay/internal/relay/core/model"
)

// SyntheticSource generates a deterministic fleet for dry runs. Every Fetch
// moves each device one step and reports one fix per device.
type SyntheticSource struct {
	devices    []model.Device
	categories []model.Category
	clock      clock.PassiveClock

	mu   sync.Mutex
	step int
}

var _ Source = (*SyntheticSource)(nil)

// NewSyntheticSource returns a fleet of n devices. The first device has no
// vehicle metadata.
func NewSyntheticSource(n int, categories []model.Category, clk clock.PassiveClock) *SyntheticSource {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if len(categories) == 0 {
		categories = []model.Category{model.CategoryGPS}
	}

	devices := make([]model.Device, n)
	for i := range devices {
		devices[i] = model.Device{
			ID:           fmt.Sprintf("b%d", i+1),
			SerialNumber: fmt.Sprintf("SYN%05d", i+1),
		}
		if i == 0 {
			continue
		}
		devices[i].Vehicle = &model.Vehicle{
			Name:         fmt.Sprintf("Synthetic %d", i+1),
			VIN:          fmt.Sprintf("1SYNTH0000000%04d", i+1),
			LicensePlate: fmt.Sprintf("SYN%03d", i+1),
			LicenseState: "CA",
		}
	}

	return &SyntheticSource{devices: devices, categories: categories, clock: clk}
}

func (s *SyntheticSource) Fetch(ctx context.Context, cursors model.Cursors) (*model.Result, model.Cursors, error) {
	if err := ctx.Err(); err != nil {
		return nil, cursors, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.step++
	now := s.clock.Now().UTC()
	res := &model.Result{}
	next := cursors.Clone()

	for i, d := range s.devices {
		if enabled(s.categories, model.CategoryGPS) {
			res.GPSRecords = append(res.GPSRecords, model.LogRecord{
				ID:        fmt.Sprintf("gps-%d-%d", s.step, i),
				Device:    d,
				DateTime:  now,
				Longitude: -117.1956 + float64(i)*0.01 + float64(s.step)*0.0005,
				Latitude:  34.0564 + float64(i)*0.01,
				Speed:     float64(40 + 5*i + s.step%10),
			})
		}
		if enabled(s.categories, model.CategoryStatus) {
			res.StatusData = append(res.StatusData, model.StatusData{
				ID:         fmt.Sprintf("status-%d-%d", s.step, i),
				Device:     d,
				DateTime:   now,
				Diagnostic: "DiagnosticEngineSpeedId",
				Data:       float64(1500 + 100*i),
			})
		}
	}

	version := strconv.Itoa(s.step)
	for _, c := range s.categories {
		next[c] = version
	}
	return res, next, nil
}
