package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/autopeer-io/fleetrelay/internal/relay/core/model"
	"github.com/autopeer-io/fleetrelay/internal/relay/transform"
	"github.com/autopeer-io/fleetrelay/pkg/log"
	"github.com/autopeer-io/fleetrelay/pkg/mqtt"
)

// MQTTSource buffers GPS fixes published on a topic and hands them out on
// Fetch. Only the GPS category is supported.
type MQTTSource struct {
	client mqtt.Client
	topic  string
	limit  int
	logger log.Logger

	mu      sync.Mutex
	pending []model.LogRecord
	drained int64
	dropped int64
}

var _ Source = (*MQTTSource)(nil)

// gpsFix is the JSON payload of one fix.
type gpsFix struct {
	DeviceID     string    `json:"deviceId"`
	SerialNumber string    `json:"serialNumber"`
	Name         string    `json:"name,omitempty"`
	VIN          string    `json:"vin,omitempty"`
	LicensePlate string    `json:"licensePlate,omitempty"`
	LicenseState string    `json:"licenseState,omitempty"`
	DateTime     time.Time `json:"dateTime"`
	Longitude    float64   `json:"longitude"`
	Latitude     float64   `json:"latitude"`
	Speed        float64   `json:"speed"`
}

// NewMQTTSource returns a source fed by client. Call Start before Fetch.
func NewMQTTSource(client mqtt.Client, topic string, limit int, logger log.Logger) *MQTTSource {
	if logger == nil {
		logger = log.WithName("mqtt-feed")
	}
	return &MQTTSource{client: client, topic: topic, limit: limit, logger: logger}
}

// Start connects to the broker, waiting until the connection is up, and
// subscribes to the fix topic.
func (s *MQTTSource) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("start mqtt client: %w", err)
	}
	if err := s.client.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("connect to mqtt broker: %w", err)
	}
	if err := s.client.Subscribe(ctx, s.topic, 1, s.handle); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.topic, err)
	}
	s.logger.Info("Subscribed to GPS topic", "topic", s.topic)
	return nil
}

// Stop disconnects from the broker.
func (s *MQTTSource) Stop(ctx context.Context) {
	s.client.Disconnect(ctx)
}

func (s *MQTTSource) handle(_ context.Context, topic string, payload []byte) {
	var fix gpsFix
	if err := json.Unmarshal(payload, &fix); err != nil {
		s.logger.Warn("Discarding malformed GPS fix", "topic", topic, "error", err.Error())
		return
	}

	rec := model.LogRecord{
		ID: fmt.Sprintf("%s-%d", fix.DeviceID, fix.DateTime.UnixMilli()),
		Device: model.Device{
			ID:           fix.DeviceID,
			SerialNumber: fix.SerialNumber,
		},
		DateTime:  fix.DateTime,
		Longitude: fix.Longitude,
		Latitude:  fix.Latitude,
		Speed:     fix.Speed,
	}
	if fix.Name != "" || fix.VIN != "" || fix.LicensePlate != "" || fix.LicenseState != "" {
		rec.Device.Vehicle = &model.Vehicle{
			Name:         fix.Name,
			VIN:          fix.VIN,
			LicensePlate: fix.LicensePlate,
			LicenseState: fix.LicenseState,
		}
	}

	// Fixes the transformer would reject are dropped one by one here.
	if err := transform.Validate(rec); err != nil {
		s.logger.Warn("Discarding malformed GPS fix", "topic", topic, "error", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit > 0 && len(s.pending) >= s.limit {
		s.pending = s.pending[1:]
		s.dropped++
	}
	s.pending = append(s.pending, rec)
}

// Fetch drains the fixes received since the previous call. The GPS cursor is
// the total number of fixes handed out.
func (s *MQTTSource) Fetch(_ context.Context, cursors model.Cursors) (*model.Result, model.Cursors, error) {
	if !s.client.IsConnected() {
		s.logger.Warn("MQTT broker not connected, returning buffered fixes only")
	}

	s.mu.Lock()
	records := s.pending
	s.pending = nil
	s.drained += int64(len(records))
	drained, dropped := s.drained, s.dropped
	s.mu.Unlock()

	if dropped > 0 {
		s.logger.Debug("GPS buffer overflowed", "dropped", dropped)
	}

	next := cursors.Clone()
	next[model.CategoryGPS] = strconv.FormatInt(drained, 10)
	return &model.Result{GPSRecords: records}, next, nil
}
