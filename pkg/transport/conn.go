package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// Conn is a self-healing MQTT connection. Subscriptions made through it
// are replayed after every reconnect.
type Conn struct {
	cm      *autopaho.ConnectionManager
	handler MessageHandler

	// up is set once the initial connection is established; reconnect
	// callbacks before that are ignored.
	up atomic.Bool

	mu     sync.Mutex
	topics []paho.SubscribeOptions
}

// PublishOption adjusts a single publish.
type PublishOption interface {
	applyToPublish(*paho.Publish)
}

func (qos QoS) applyToPublish(pub *paho.Publish) {
	pub.QoS = byte(qos)
}

type retain struct{}

func (retain) applyToPublish(pub *paho.Publish) {
	pub.Retain = true
}

// WithRetain sets the retain flag of the message.
func WithRetain() PublishOption {
	return retain{}
}

// Publish writes a message to the topic, QoS 0 and no retain unless
// overridden by options.
func (conn *Conn) Publish(ctx context.Context, topic string, payload []byte, opts ...PublishOption) error {
	pub := &paho.Publish{
		Topic:   topic,
		Payload: payload,
	}
	for _, opt := range opts {
		opt.applyToPublish(pub)
	}
	_, err := conn.cm.Publish(ctx, pub)
	return err
}

// Subscribe subscribes to the given topic filters with the given QoS and
// records them for replay after a reconnect.
func (conn *Conn) Subscribe(ctx context.Context, qos QoS, topics ...string) error {
	if len(topics) == 0 {
		return nil
	}
	subs := make([]paho.SubscribeOptions, 0, len(topics))
	for _, t := range topics {
		subs = append(subs, paho.SubscribeOptions{Topic: t, QoS: byte(qos)})
	}
	conn.mu.Lock()
	conn.topics = append(conn.topics, subs...)
	conn.mu.Unlock()

	if _, err := conn.cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: subs}); err != nil {
		return fmt.Errorf("transport: subscribe %v: %w", topics, err)
	}
	return nil
}

// Unsubscribe unsubscribes from a topic filter and stops replaying it.
func (conn *Conn) Unsubscribe(ctx context.Context, topic string) error {
	conn.mu.Lock()
	kept := conn.topics[:0]
	for _, s := range conn.topics {
		if s.Topic != topic {
			kept = append(kept, s)
		}
	}
	conn.topics = kept
	conn.mu.Unlock()

	_, err := conn.cm.Unsubscribe(ctx, &paho.Unsubscribe{Topics: []string{topic}})
	return err
}

func (conn *Conn) resubscribe() {
	if !conn.up.Load() {
		return
	}
	conn.mu.Lock()
	subs := make([]paho.SubscribeOptions, len(conn.topics))
	copy(subs, conn.topics)
	conn.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	go func() {
		if _, err := conn.cm.Subscribe(context.Background(), &paho.Subscribe{Subscriptions: subs}); err != nil {
			slog.Error("mqtt resubscribe failed", "error", err)
		}
	}()
}

// Close disconnects from the server.
func (conn *Conn) Close() error {
	return conn.cm.Disconnect(context.Background())
}
