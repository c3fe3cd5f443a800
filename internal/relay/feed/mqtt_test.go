package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/fleetrelay/internal/relay/core/model"
	"github.com/autopeer-io/fleetrelay/internal/relay/transform"
	"github.com/autopeer-io/fleetrelay/pkg/mqtt"
)

type fakeMQTT struct {
	started bool
	topic   string
	handler mqtt.MessageHandler
}

func (f *fakeMQTT) Start(context.Context) error { f.started = true; return nil }
func (f *fakeMQTT) Disconnect(context.Context)  {}
func (f *fakeMQTT) Subscribe(_ context.Context, topic string, _ int, h mqtt.MessageHandler) error {
	f.topic, f.handler = topic, h
	return nil
}
func (f *fakeMQTT) AwaitConnection(context.Context) error { return nil }
func (f *fakeMQTT) IsConnected() bool                     { return f.started }

func TestMQTTSourceDrains(t *testing.T) {
	client := &fakeMQTT{}
	s := NewMQTTSource(client, "fleet/+/gps", 2, nil)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.Equal(t, "fleet/+/gps", client.topic)

	client.handler(ctx, "fleet/b1/gps", []byte(`{"deviceId":"b1","serialNumber":"G1","dateTime":"2024-03-01T20:30:15Z","longitude":1,"latitude":2,"speed":3}`))
	client.handler(ctx, "fleet/b2/gps", []byte(`not json`))
	client.handler(ctx, "fleet/b2/gps", []byte(`{"deviceId":"b2","serialNumber":"G2","name":"Van","dateTime":"2024-03-01T20:30:16Z"}`))
	client.handler(ctx, "fleet/b3/gps", []byte(`{"deviceId":"b3","serialNumber":"G3","dateTime":"2024-03-01T20:30:17Z"}`))

	res, next, err := s.Fetch(ctx, model.Cursors{})
	require.NoError(t, err)
	require.Len(t, res.GPSRecords, 2)
	assert.Equal(t, "G2", res.GPSRecords[0].Device.SerialNumber)
	assert.Equal(t, "Van", res.GPSRecords[0].Device.Name())
	assert.Nil(t, res.GPSRecords[1].Device.Vehicle)
	assert.Equal(t, "2", next[model.CategoryGPS])

	res, next, err = s.Fetch(ctx, next)
	require.NoError(t, err)
	assert.Empty(t, res.GPSRecords)
	assert.Equal(t, "2", next[model.CategoryGPS])
}

func TestMQTTSourceDiscardsInvalidFixes(t *testing.T) {
	client := &fakeMQTT{}
	s := NewMQTTSource(client, "fleet/+/gps", 10, nil)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	for _, payload := range []string{
		`{"deviceId":"b1","serialNumber":"G1","dateTime":"2024-03-01T20:30:15Z","longitude":1,"latitude":2}`,
		`{"deviceId":"b2","dateTime":"2024-03-01T20:30:16Z"}`,
		`{"deviceId":"b3","serialNumber":"G3"}`,
		`{"deviceId":"b4","serialNumber":"G4","dateTime":"2024-03-01T20:30:17Z","latitude":91}`,
		`{"deviceId":"b5","serialNumber":"G5","dateTime":"2024-03-01T20:30:18Z","speed":12.5}`,
	} {
		client.handler(ctx, "fleet/x/gps", []byte(payload))
	}

	res, next, err := s.Fetch(ctx, model.Cursors{})
	require.NoError(t, err)
	require.Len(t, res.GPSRecords, 2)
	assert.Equal(t, "G1", res.GPSRecords[0].Device.SerialNumber)
	assert.Equal(t, "G5", res.GPSRecords[1].Device.SerialNumber)
	assert.Equal(t, "2", next[model.CategoryGPS])

	batch, err := transform.ToBatch(res.GPSRecords)
	require.NoError(t, err)
	assert.Len(t, batch, 2)
}
