package testutil

import (
	"sync"

	"github.com/reelhub/backend/internal/realtime"
)

// Publisher records realtime traffic for assertions
type Publisher struct {
	mu       sync.Mutex
	Events   []realtime.ChangeEvent
	Messages map[string][]*realtime.Message
}

var _ realtime.Publisher = (*Publisher)(nil)

func NewPublisher() *Publisher {
	return &Publisher{Messages: map[string][]*realtime.Message{}}
}

func (p *Publisher) Publish(ev realtime.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, ev)
}

func (p *Publisher) SendToUser(userID string, message *realtime.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages[userID] = append(p.Messages[userID], message)
}

// Table returns the published events for table
func (p *Publisher) Table(table string) []realtime.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []realtime.ChangeEvent
	for _, ev := range p.Events {
		if ev.Table == table {
			out = append(out, ev)
		}
	}
	return out
}
