// Package transport maintains the device's MQTT connection.
//
// It wraps eclipse/paho.golang's autopaho client: the connection is
// re-established automatically after a drop, registered subscriptions are
// replayed on every reconnect, and each inbound publish is delivered to a
// single MessageHandler. Topic routing and handler priorities live in
// pkg/bus, not here.
package transport

import (
	"context"
)

// QoS is the MQTT Quality of Service.
type QoS byte

const (
	AtMostOnce QoS = iota
	AtLeastOnce
	ExactlyOnce
)

// MessageHandler receives every inbound publish on the connection.
type MessageHandler func(ctx context.Context, topic string, payload []byte)
