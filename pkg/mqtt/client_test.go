package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicsMatch(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"fleet/truck-1/gps", "fleet/truck-1/gps", true},
		{"fleet/+/gps", "fleet/truck-1/gps", true},
		{"fleet/+/gps", "fleet/truck-1/status", false},
		{"fleet/#", "fleet/truck-1/gps", true},
		{"fleet/+", "fleet/truck-1/gps", false},
		{"fleet/+/gps/extra", "fleet/truck-1/gps", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter+"|"+tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, topicsMatch(tt.filter, tt.topic))
		})
	}
}

func TestTopicFilterStripsSharedGroup(t *testing.T) {
	assert.Equal(t, "fleet/+/gps", topicFilter("$share/relays/fleet/+/gps"))
	assert.Equal(t, "fleet/+/gps", topicFilter("fleet/+/gps"))
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	_, err = NewClient(&ClientConfig{BrokerURL: "localhost"})
	assert.Error(t, err)

	c, err := NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883"})
	assert.NoError(t, err)
	assert.False(t, c.IsConnected())

	cfg := c.(*pahoClient).cfg
	assert.EqualValues(t, 60, cfg.KeepAlive)
}
