package bus

import (
	"context"
	"sync"
	"testing"
)

type recordPublisher struct {
	mu   sync.Mutex
	sent []Message
}

func (p *recordPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, Message{Topic: topic, Payload: payload})
	return nil
}

func TestDispatchPriorityOrder(t *testing.T) {
	r := NewRouter(&recordPublisher{})

	var order []int
	add := func(prio uint8) {
		p := int(prio)
		err := r.RegisterFunc("a/b", func(context.Context, Publisher, *Message) bool {
			order = append(order, p)
			return false
		}, "", prio)
		if err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	add(50)
	add(150)
	add(100)

	r.Dispatch(context.Background(), "a/b", nil)

	want := []int{150, 100, 50}
	if len(order) != len(want) {
		t.Fatalf("invoked %d handlers, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %d, want %d", i, order[i], want[i])
		}
	}
}

func TestDispatchShortCircuit(t *testing.T) {
	r := NewRouter(&recordPublisher{})

	var calls []string
	r.RegisterFunc("a/#", func(context.Context, Publisher, *Message) bool {
		calls = append(calls, "high")
		return true
	}, "high", 200)
	r.RegisterFunc("a/b", func(context.Context, Publisher, *Message) bool {
		calls = append(calls, "low")
		return true
	}, "low", 10)

	r.Dispatch(context.Background(), "a/b", nil)

	if len(calls) != 1 || calls[0] != "high" {
		t.Errorf("calls = %v, want [high]", calls)
	}
}

func TestDispatchWildcardSelection(t *testing.T) {
	r := NewRouter(&recordPublisher{})

	var got string
	r.RegisterFunc("sensor/+/temp", func(_ context.Context, _ Publisher, m *Message) bool {
		got = m.Topic
		return true
	}, "temp", 100)

	r.Dispatch(context.Background(), "sensor/node1/temp", []byte("21.5"))
	if got != "sensor/node1/temp" {
		t.Errorf("handler saw topic %q", got)
	}

	got = ""
	r.Dispatch(context.Background(), "sensor/node1/humidity", nil)
	if got != "" {
		t.Error("handler invoked for non-matching topic")
	}
}

func TestDispatchUnroutedDropsSilently(t *testing.T) {
	r := NewRouter(&recordPublisher{})
	// No handlers at all: must not panic or error.
	r.Dispatch(context.Background(), "nobody/home", []byte("x"))
}

func TestUnregisterExactPatternOnly(t *testing.T) {
	r := NewRouter(&recordPublisher{})

	hits := 0
	f := HandlerFunc(func(context.Context, Publisher, *Message) bool {
		hits++
		return true
	})
	r.Register("a/+", f, "one", 100)
	r.Register("a/+", f, "two", 50)
	r.Register("a/b", f, "exact", 200)

	if n := r.Unregister("a/+"); n != 2 {
		t.Errorf("Unregister removed %d, want 2", n)
	}

	r.Dispatch(context.Background(), "a/b", nil)
	if hits != 1 {
		t.Errorf("hits = %d, want 1 (only the exact handler left)", hits)
	}
}

func TestHandlerPublishesReply(t *testing.T) {
	pub := &recordPublisher{}
	r := NewRouter(pub)

	r.RegisterFunc("audio/request", func(ctx context.Context, p Publisher, m *Message) bool {
		p.Publish(ctx, "audio/response", []byte("FREE:1024:0"))
		return true
	}, "free-space", 100)

	r.Dispatch(context.Background(), "audio/request", []byte("REQUEST_FREE_SPACE"))

	if len(pub.sent) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.sent))
	}
	if pub.sent[0].Topic != "audio/response" || string(pub.sent[0].Payload) != "FREE:1024:0" {
		t.Errorf("reply = %s %q", pub.sent[0].Topic, pub.sent[0].Payload)
	}
}

func TestRegisterInvalidPattern(t *testing.T) {
	r := NewRouter(&recordPublisher{})
	if err := r.RegisterFunc("a/#/b", func(context.Context, Publisher, *Message) bool { return true }, "", 0); err == nil {
		t.Error("expected error for non-trailing #")
	}
}
