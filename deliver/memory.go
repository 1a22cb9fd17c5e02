package deliver

import (
	"context"
	"sync"

	"smtpcore/session"
)

// Memory is an in-process Deliverer that records every accepted message.
// It is intended for tests, not for production use.
type Memory struct {
	mu       sync.Mutex
	Messages []Recorded
}

// Recorded is a defensive copy of an accepted message's envelope and body.
type Recorded struct {
	Sender     string
	Recipients []string
	Body       []byte
}

// NewMessageAccepted implements session.Deliverer.
func (m *Memory) NewMessageAccepted(_ context.Context, msg *session.Message) error {
	sender := ""
	if msg.Sender != nil {
		sender = *msg.Sender
	}
	recipients := append([]string(nil), msg.Recipients...)
	body := append([]byte(nil), msg.Body...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, Recorded{Sender: sender, Recipients: recipients, Body: body})
	return nil
}

// Count returns the number of messages delivered so far.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}
