// Package mqtt subscribes to telemetry topics on an MQTT v5 broker.
package mqtt

import (
	"context"
)

// MessageHandler receives the payload of every message matching a
// subscription. Handlers run on the receive path and must not block.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// Client is a reconnecting subscriber. Subscriptions survive reconnects.
type Client interface {
	// Start dials the broker in the background. Connection attempts continue
	// until Disconnect.
	Start(ctx context.Context) error

	// AwaitConnection blocks until the first connection is up or ctx is done.
	AwaitConnection(ctx context.Context) error

	// Subscribe routes messages matching topic, which may carry + and #
	// wildcards or a $share/<group>/ prefix, to handler.
	Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error

	// IsConnected reports whether the broker connection is currently up.
	IsConnected() bool

	// Disconnect closes the connection and stops reconnecting.
	Disconnect(ctx context.Context)
}
