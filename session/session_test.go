package session

import (
	"context"
	"strings"
	"testing"
)

// fakeTransport is an in-memory Transport: writes accumulate in a buffer
// and Close just flips a flag, mirroring the style of the teacher's own
// connection test doubles.
type fakeTransport struct {
	written strings.Builder
	closed  bool
}

func (t *fakeTransport) Write(p []byte) (int, error) {
	if t.closed {
		return 0, errDisconnected
	}
	return t.written.Write(p)
}

func (t *fakeTransport) Close() error {
	t.closed = true
	return nil
}

func (t *fakeTransport) replies() []string {
	lines := strings.Split(strings.TrimSuffix(t.written.String(), "\r\n"), "\r\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	return lines
}

func (t *fakeTransport) lastReply() string {
	r := t.replies()
	if len(r) == 0 {
		return ""
	}
	return r[len(r)-1]
}

type fakeAuthenticator struct {
	valid map[string]string
}

func (a *fakeAuthenticator) Authenticate(_ context.Context, username, password string, _ Peer) bool {
	return a.valid[username] == password
}

type recordingDeliverer struct {
	delivered []*Message
}

func (d *recordingDeliverer) NewMessageAccepted(_ context.Context, msg *Message) error {
	cp := *msg
	d.delivered = append(d.delivered, &cp)
	return nil
}

func newTestSession(policy Policy, authenticator Authenticator, deliverer Deliverer, allowLogin bool) (*Session, *fakeTransport) {
	transport := &fakeTransport{}
	if policy == nil {
		policy = DefaultPolicy{}
	}
	s := New(transport, Peer{RemoteIP: "203.0.113.5", RemotePort: 54321}, "mail.example.test", policy, authenticator, deliverer, allowLogin)
	return s, transport
}

func feed(s *Session, lines ...string) {
	for _, line := range lines {
		s.ProcessNewData([]byte(line + "\r\n"))
	}
}

func TestSimpleSendHappyPath(t *testing.T) {
	deliverer := &recordingDeliverer{}
	s, tr := newTestSession(nil, nil, deliverer, false)
	s.Start()

	feed(s, "HELO mail.sender.test", "MAIL FROM:<a@sender.test>", "RCPT TO:<b@recipient.test>", "DATA")
	s.ProcessNewData([]byte("Subject: hi\r\n\r\nbody\r\n.\r\n"))
	feed(s, "QUIT")

	if len(deliverer.delivered) != 1 {
		t.Fatalf("expected one delivered message, got %d", len(deliverer.delivered))
	}
	msg := deliverer.delivered[0]
	if msg.Sender == nil || *msg.Sender != "a@sender.test" {
		t.Fatalf("got sender %v", msg.Sender)
	}
	if len(msg.Recipients) != 1 || msg.Recipients[0] != "b@recipient.test" {
		t.Fatalf("got recipients %v", msg.Recipients)
	}
	if string(msg.Body) != "Subject: hi\n\nbody" {
		t.Fatalf("got body %q", string(msg.Body))
	}
	if !tr.closed {
		t.Fatal("expected connection closed after QUIT")
	}
}

func TestPlainSmtpRejectsMailExtensions(t *testing.T) {
	s, tr := newTestSession(nil, nil, nil, false)
	s.Start()

	feed(s, "HELO mail.sender.test", "MAIL FROM:<a@sender.test> SIZE=1000")

	if !strings.HasPrefix(tr.lastReply(), "501") {
		t.Fatalf("got reply %q, want 501", tr.lastReply())
	}
}

func TestEsmtpAdvertisesSize(t *testing.T) {
	max := 1000
	policy := &sizeLimitPolicy{max: max}
	s, tr := newTestSession(policy, nil, nil, false)
	s.Start()

	feed(s, "EHLO mail.sender.test")

	found := false
	for _, line := range tr.replies() {
		if strings.Contains(line, "SIZE 1000") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected SIZE capability in EHLO reply, got %v", tr.replies())
	}
}

func TestEarlySizeRejection(t *testing.T) {
	max := 100
	policy := &sizeLimitPolicy{max: max}
	s, tr := newTestSession(policy, nil, nil, false)
	s.Start()

	feed(s, "EHLO mail.sender.test", "MAIL FROM:<a@sender.test> SIZE=1000000")

	if !strings.HasPrefix(tr.lastReply(), "552") {
		t.Fatalf("got reply %q, want 552", tr.lastReply())
	}
}

func TestAuthPlainHappyPath(t *testing.T) {
	authenticator := &fakeAuthenticator{valid: map[string]string{"user": "pass"}}
	s, tr := newTestSession(nil, authenticator, nil, false)
	s.Start()

	feed(s, "EHLO mail.sender.test", "AUTH PLAIN AHVzZXIAcGFzcw==")

	if !strings.HasPrefix(tr.lastReply(), "235") {
		t.Fatalf("got reply %q, want 235", tr.lastReply())
	}
}

func TestAuthPlainBadCredentials(t *testing.T) {
	authenticator := &fakeAuthenticator{valid: map[string]string{"user": "pass"}}
	s, tr := newTestSession(nil, authenticator, nil, false)
	s.Start()

	feed(s, "EHLO mail.sender.test", "AUTH PLAIN AHVzZXIAd3Jvbmc=")

	if !strings.HasPrefix(tr.lastReply(), "535") {
		t.Fatalf("got reply %q, want 535", tr.lastReply())
	}
}

func TestAuthLoginThreeStep(t *testing.T) {
	authenticator := &fakeAuthenticator{valid: map[string]string{"user": "pass"}}
	s, tr := newTestSession(nil, authenticator, nil, true)
	s.Start()

	feed(s, "EHLO mail.sender.test", "AUTH LOGIN")
	if !strings.HasPrefix(tr.lastReply(), "334") {
		t.Fatalf("got reply %q, want 334 (Username:)", tr.lastReply())
	}
	feed(s, "dXNlcg==") // base64("user")
	if !strings.HasPrefix(tr.lastReply(), "334") {
		t.Fatalf("got reply %q, want 334 (Password:)", tr.lastReply())
	}
	feed(s, "cGFzcw==") // base64("pass")
	if !strings.HasPrefix(tr.lastReply(), "235") {
		t.Fatalf("got reply %q, want 235", tr.lastReply())
	}
}

func TestDotTransparency(t *testing.T) {
	deliverer := &recordingDeliverer{}
	s, _ := newTestSession(nil, nil, deliverer, false)
	s.Start()

	feed(s, "HELO mail.sender.test", "MAIL FROM:<a@sender.test>", "RCPT TO:<b@recipient.test>", "DATA")
	s.ProcessNewData([]byte("..this line started with two dots\r\n.\r\n"))

	if len(deliverer.delivered) != 1 {
		t.Fatalf("expected one delivered message, got %d", len(deliverer.delivered))
	}
	want := ".this line started with two dots"
	if string(deliverer.delivered[0].Body) != want {
		t.Fatalf("got body %q, want %q", string(deliverer.delivered[0].Body), want)
	}
}

func TestRsetResetsSenderNotHelo(t *testing.T) {
	s, tr := newTestSession(nil, nil, nil, false)
	s.Start()

	feed(s, "HELO mail.sender.test", "MAIL FROM:<a@sender.test>", "RSET")
	if !strings.HasPrefix(tr.lastReply(), "250") {
		t.Fatalf("got reply %q, want 250 after RSET", tr.lastReply())
	}
	if s.message.Sender != nil {
		t.Fatal("expected sender cleared by RSET")
	}
	if s.message.HeloOrEhlo != "mail.sender.test" {
		t.Fatalf("expected HELO name retained across RSET, got %q", s.message.HeloOrEhlo)
	}

	// A second MAIL FROM should now succeed without repeating HELO.
	feed(s, "MAIL FROM:<c@sender.test>")
	if !strings.HasPrefix(tr.lastReply(), "250") {
		t.Fatalf("got reply %q, want 250 for MAIL FROM after RSET", tr.lastReply())
	}
}

func TestSecondHeloIsTreatedAsResetThenHelo(t *testing.T) {
	s, tr := newTestSession(nil, nil, nil, false)
	s.Start()

	feed(s, "HELO first.example", "MAIL FROM:<a@sender.test>", "HELO second.example")
	if !strings.HasPrefix(tr.lastReply(), "250") {
		t.Fatalf("got reply %q, want 250 for second HELO", tr.lastReply())
	}
	if s.message.Sender != nil {
		t.Fatal("expected sender cleared by the implicit reset")
	}
	if s.message.HeloOrEhlo != "second.example" {
		t.Fatalf("got HELO name %q", s.message.HeloOrEhlo)
	}
}

func TestUnknownCommandGetsUnrecognisedReply(t *testing.T) {
	s, tr := newTestSession(nil, nil, nil, false)
	s.Start()

	feed(s, "BOGUS")
	if !strings.HasPrefix(tr.lastReply(), "500") {
		t.Fatalf("got reply %q, want 500", tr.lastReply())
	}
}

func TestOutOfSequenceCommandGetsBadSequenceReply(t *testing.T) {
	s, tr := newTestSession(nil, nil, nil, false)
	s.Start()

	feed(s, "MAIL FROM:<a@sender.test>")
	if !strings.HasPrefix(tr.lastReply(), "503") {
		t.Fatalf("got reply %q, want 503", tr.lastReply())
	}
}

type sizeLimitPolicy struct {
	DefaultPolicy
	max int
}

func (p *sizeLimitPolicy) MaxMessageSize(Peer) *int { return &p.max }
