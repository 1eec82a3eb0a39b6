// Package bus routes message-bus traffic to registered handlers.
//
// A Router turns the flat topic/payload stream arriving from the bus
// transport into prioritized handler invocations. Handlers are registered
// with an MQTT-style topic pattern and a priority; on dispatch every
// matching handler is tried in descending priority order until one reports
// that it handled the message.
package bus

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/chimebox/chimebox/pkg/topic"
)

// Message is a single inbound bus message.
type Message struct {
	Topic   string
	Payload []byte
}

// Publisher lets handlers emit replies and notifications back to the bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Handler processes a dispatched message. It returns true if the message
// was handled; dispatch stops at the first handler that returns true.
//
// Handlers run synchronously in the dispatching goroutine and must not
// block unboundedly.
type Handler interface {
	HandleMessage(ctx context.Context, pub Publisher, msg *Message) bool
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, pub Publisher, msg *Message) bool

func (f HandlerFunc) HandleMessage(ctx context.Context, pub Publisher, msg *Message) bool {
	return f(ctx, pub, msg)
}

type registration struct {
	pattern  string
	handler  Handler
	name     string
	priority uint8
	seq      uint64 // insertion order, for a stable sort among equals
}

// Router dispatches bus messages to pattern-matched handlers in priority
// order. The zero value is not usable; use NewRouter.
type Router struct {
	pub Publisher
	log *slog.Logger

	mu       sync.RWMutex
	handlers []registration
	nextSeq  uint64
}

// NewRouter creates a Router whose handlers reply through pub.
func NewRouter(pub Publisher) *Router {
	return &Router{pub: pub, log: slog.Default()}
}

// SetLogger overrides the router's logger.
func (r *Router) SetLogger(log *slog.Logger) {
	if log != nil {
		r.log = log
	}
}

// Register adds a handler for the given topic pattern. The name is used
// only for logging; higher priority handlers are tried first. Multiple
// handlers may share a pattern.
func (r *Router) Register(pattern string, h Handler, name string, priority uint8) error {
	if err := topic.Validate(pattern); err != nil {
		return err
	}
	if name == "" {
		name = pattern
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// Copy on write: Dispatch iterates the slice outside the lock.
	hs := make([]registration, 0, len(r.handlers)+1)
	hs = append(hs, r.handlers...)
	hs = append(hs, registration{
		pattern:  pattern,
		handler:  h,
		name:     name,
		priority: priority,
		seq:      r.nextSeq,
	})
	r.nextSeq++
	// Descending by priority; insertion order breaks ties.
	slices.SortStableFunc(hs, func(a, b registration) int {
		if a.priority != b.priority {
			return int(b.priority) - int(a.priority)
		}
		if a.seq < b.seq {
			return -1
		}
		return 1
	})
	r.handlers = hs
	r.log.Debug("bus: handler registered", "name", name, "pattern", pattern, "priority", priority)
	return nil
}

// RegisterFunc registers a HandlerFunc for the given pattern.
func (r *Router) RegisterFunc(pattern string, f HandlerFunc, name string, priority uint8) error {
	return r.Register(pattern, f, name, priority)
}

// Unregister removes every handler whose pattern is exactly equal to
// pattern (no wildcard expansion). It returns the number removed.
func (r *Router) Unregister(pattern string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := len(r.handlers)
	hs := slices.Clone(r.handlers)
	hs = slices.DeleteFunc(hs, func(reg registration) bool {
		return reg.pattern == pattern
	})
	r.handlers = hs
	return before - len(hs)
}

// Patterns returns the distinct registered patterns, in priority order.
// The bus transport uses this to subscribe.
func (r *Router) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, reg := range r.handlers {
		if !slices.Contains(out, reg.pattern) {
			out = append(out, reg.pattern)
		}
	}
	return out
}

// Dispatch routes one message. Handlers whose pattern matches the topic
// are invoked in priority order until one reports handled. A message no
// handler accepts is logged and dropped; this is not an error to the bus.
func (r *Router) Dispatch(ctx context.Context, topicName string, payload []byte) {
	r.mu.RLock()
	handlers := r.handlers
	r.mu.RUnlock()

	msg := &Message{Topic: topicName, Payload: payload}
	for _, reg := range handlers {
		if !topic.Match(reg.pattern, topicName) {
			continue
		}
		if reg.handler.HandleMessage(ctx, r.pub, msg) {
			return
		}
	}
	r.log.Debug("bus: message unrouted", "topic", topicName, "bytes", len(payload))
}
