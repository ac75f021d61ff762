// Package memory provides an in-process event publisher that captures
// document notifications instead of sending them, for tests and DSN-less
// development runs.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Message is one captured document event.
type Message struct {
	ID      string
	Topic   string
	Payload any
}

// Publisher appends every publish to an in-memory log in arrival order.
type Publisher struct {
	mu   sync.Mutex
	next int
	log  []Message
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish captures the payload and returns a sequential local ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	msg := Message{
		ID:      fmt.Sprintf("local-%d", p.next),
		Topic:   topic,
		Payload: payload,
	}
	p.log = append(p.log, msg)
	return msg.ID, nil
}

// Messages returns a copy of every captured event.
func (p *Publisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.log))
	copy(out, p.log)
	return out
}

// MessagesFor returns the captured events published to one topic.
func (p *Publisher) MessagesFor(topic string) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Message
	for _, msg := range p.log {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}
