package deliver

import (
	"context"
	"sync"
	"testing"

	"smtpcore/session"
)

func TestMemoryRecordsDeliveredMessage(t *testing.T) {
	m := &Memory{}
	sender := "a@example.test"
	msg := &session.Message{
		Sender:     &sender,
		Recipients: []string{"b@example.test", "c@example.test"},
		Body:       []byte("hello"),
	}

	if err := m.NewMessageAccepted(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Count() != 1 {
		t.Fatalf("got count %d, want 1", m.Count())
	}
	got := m.Messages[0]
	if got.Sender != sender {
		t.Fatalf("got sender %q", got.Sender)
	}
	if len(got.Recipients) != 2 {
		t.Fatalf("got recipients %v", got.Recipients)
	}
}

func TestMemoryDefensiveCopiesMessage(t *testing.T) {
	m := &Memory{}
	sender := "a@example.test"
	body := []byte("hello")
	msg := &session.Message{Sender: &sender, Body: body}

	if err := m.NewMessageAccepted(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body[0] = 'X'
	if string(m.Messages[0].Body) == "Xello" {
		t.Fatal("expected Memory to hold a copy of the body, not an alias")
	}
}

func TestMemoryNilSenderRecordsEmptyString(t *testing.T) {
	m := &Memory{}
	if err := m.NewMessageAccepted(context.Background(), &session.Message{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Messages[0].Sender != "" {
		t.Fatalf("got sender %q, want empty", m.Messages[0].Sender)
	}
}

func TestMemoryIsSafeForConcurrentDelivery(t *testing.T) {
	m := &Memory{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.NewMessageAccepted(context.Background(), &session.Message{Body: []byte("x")})
		}()
	}
	wg.Wait()
	if m.Count() != 20 {
		t.Fatalf("got count %d, want 20", m.Count())
	}
}
